package raster

import (
	"encoding/binary"
	"fmt"
	"os"
)

// extractTIFFDensity reads the XResolution/YResolution/ResolutionUnit tags
// from a TIFF header without decoding the raster.
func extractTIFFDensity(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// Read TIFF header to determine byte order
	header := make([]byte, 8)
	if _, err := file.Read(header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	if header[0] == 'I' && header[1] == 'I' {
		byteOrder = binary.LittleEndian
	} else if header[0] == 'M' && header[1] == 'M' {
		byteOrder = binary.BigEndian
	} else {
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	ifdOffset := byteOrder.Uint32(header[4:8])
	if _, err := file.Seek(int64(ifdOffset), 0); err != nil {
		return 0, err
	}

	var numEntries uint16
	if err := binary.Read(file, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = 2 // Default to inches

	for i := uint16(0); i < numEntries; i++ {
		entry := make([]byte, 12)
		if _, err := file.Read(entry); err != nil {
			return 0, err
		}

		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		valueOffset := byteOrder.Uint32(entry[8:12])

		switch tag {
		case 282: // XResolution
			if fieldType == 5 { // RATIONAL
				xRes = readTIFFRational(file, int64(valueOffset), byteOrder)
			}
		case 283: // YResolution
			if fieldType == 5 { // RATIONAL
				yRes = readTIFFRational(file, int64(valueOffset), byteOrder)
			}
		case 296: // ResolutionUnit
			if fieldType == 3 { // SHORT
				resUnit = uint16(valueOffset)
			}
		}
	}

	if xRes == 0 && yRes == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	dpi := xRes
	if dpi == 0 {
		dpi = yRes
	}

	// Convert from centimeters to inches if needed
	if resUnit == 3 {
		dpi *= 2.54
	}

	if dpi == 0 {
		return 0, fmt.Errorf("density is zero")
	}
	return dpi, nil
}

// readTIFFRational reads a RATIONAL value (two uint32s) from a TIFF file.
func readTIFFRational(file *os.File, offset int64, byteOrder binary.ByteOrder) float64 {
	currentPos, _ := file.Seek(0, 1) // Save current position
	defer file.Seek(currentPos, 0)   // Restore position

	file.Seek(offset, 0)
	var num, denom uint32
	binary.Read(file, byteOrder, &num)
	binary.Read(file, byteOrder, &denom)

	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// extractJFIFDensity reads the density fields of a JPEG APP0 (JFIF) segment.
func extractJFIFDensity(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	// SOI marker followed by the first segment header.
	head := make([]byte, 4)
	if _, err := file.Read(head); err != nil {
		return 0, err
	}
	if head[0] != 0xFF || head[1] != 0xD8 {
		return 0, fmt.Errorf("not a valid JPEG file")
	}
	if head[2] != 0xFF || head[3] != 0xE0 {
		return 0, fmt.Errorf("no APP0 segment")
	}

	// APP0 body: length(2) "JFIF\0"(5) version(2) units(1) xdensity(2) ydensity(2)
	body := make([]byte, 14)
	if _, err := file.Read(body); err != nil {
		return 0, err
	}
	if string(body[2:7]) != "JFIF\x00" {
		return 0, fmt.Errorf("APP0 is not JFIF")
	}

	units := body[9]
	xDensity := float64(binary.BigEndian.Uint16(body[10:12]))
	yDensity := float64(binary.BigEndian.Uint16(body[12:14]))

	dpi := xDensity
	if dpi == 0 {
		dpi = yDensity
	}

	switch units {
	case 1: // dots per inch
	case 2: // dots per cm
		dpi *= 2.54
	default:
		// Unit 0 means aspect ratio only, not a physical density.
		return 0, fmt.Errorf("JFIF density has no physical unit")
	}

	if dpi <= 1 {
		return 0, fmt.Errorf("density is not usable")
	}
	return dpi, nil
}
