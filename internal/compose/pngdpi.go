package compose

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// StampPNGDensity inserts (or replaces) a pHYs chunk declaring the physical
// pixel density of a PNG. The chunk goes directly after IHDR, where decoders
// expect ancillary metadata.
func StampPNGDensity(data []byte, dpi float64) ([]byte, error) {
	if len(data) < len(pngSignature) || string(data[:8]) != string(pngSignature) {
		return nil, fmt.Errorf("not a PNG stream")
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("dpi must be positive, got %.2f", dpi)
	}

	phys := buildPhysChunk(dpi)

	out := make([]byte, 0, len(data)+len(phys))
	out = append(out, data[:8]...)

	pos := 8
	inserted := false
	for pos+12 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])
		end := pos + 12 + length
		if end > len(data) {
			return nil, fmt.Errorf("truncated PNG chunk %s", chunkType)
		}

		// Drop any existing pHYs; ours replaces it.
		if chunkType != "pHYs" {
			out = append(out, data[pos:end]...)
		}
		if chunkType == "IHDR" && !inserted {
			out = append(out, phys...)
			inserted = true
		}
		pos = end
		if chunkType == "IEND" {
			break
		}
	}

	if !inserted {
		return nil, fmt.Errorf("PNG stream has no IHDR chunk")
	}
	return out, nil
}

// buildPhysChunk encodes a pHYs chunk: x/y pixels per metre plus the
// metre-unit flag, with the standard CRC over type and payload.
func buildPhysChunk(dpi float64) []byte {
	ppm := uint32(math.Round(dpi / 0.0254))

	chunk := make([]byte, 12+9)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: metre

	crc := crc32.ChecksumIEEE(chunk[4:17])
	binary.BigEndian.PutUint32(chunk[17:21], crc)
	return chunk
}

// ReadPNGDensity extracts the DPI from a pHYs chunk if one is present.
// Used by tests and the corpus rescan path to verify stamped output.
func ReadPNGDensity(data []byte) (float64, bool) {
	if len(data) < 8 || string(data[:8]) != string(pngSignature) {
		return 0, false
	}
	pos := 8
	for pos+12 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkType := string(data[pos+4 : pos+8])
		end := pos + 12 + length
		if end > len(data) {
			return 0, false
		}
		if chunkType == "pHYs" && length == 9 {
			ppm := binary.BigEndian.Uint32(data[pos+8 : pos+12])
			unit := data[pos+16]
			if unit != 1 {
				return 0, false
			}
			return float64(ppm) * 0.0254, true
		}
		if chunkType == "IEND" {
			break
		}
		pos = end
	}
	return 0, false
}
