package normalize

// Rule is one named accept heuristic. The rule table keeps the accept
// decision auditable: a rejected page records which rules failed instead of
// collapsing them into a single boolean.
type Rule struct {
	Name string
	Pass func(Stats) bool
}

// Decision is the accept/needs-review outcome for one page.
type Decision struct {
	Accepted bool `json:"accepted"`

	// Notes lists the names of failed rules; empty when accepted.
	Notes []string `json:"notes"`

	// Overrides is reserved for manual review corrections. This pipeline
	// never populates it.
	Overrides map[string]string `json:"overrides"`
}

// minAcceptCoverage and minAcceptConfidence gate the two accept rules.
const (
	minAcceptCoverage   = 0.5
	minAcceptConfidence = 0.2

	// confidenceBoost lifts the raw skew confidence before gating: a page with
	// no strong gradients at all (blank margins, sparse content) is still
	// usually upright.
	confidenceBoost = 0.25
)

// AcceptRules returns the ordered rule table.
func AcceptRules() []Rule {
	return []Rule{
		{
			Name: "mask-coverage",
			Pass: func(s Stats) bool {
				return s.MaskCoverage >= minAcceptCoverage
			},
		},
		{
			Name: "deskew-confidence",
			Pass: func(s Stats) bool {
				c := s.SkewConfidence + confidenceBoost
				if c > 1 {
					c = 1
				}
				return c >= minAcceptConfidence
			},
		},
	}
}

// Decide evaluates the rule table; a page is accepted when every rule
// passes. Failed rule names land in Notes for the review queue.
func Decide(stats Stats) Decision {
	d := Decision{
		Accepted:  true,
		Notes:     []string{},
		Overrides: map[string]string{},
	}
	for _, rule := range AcceptRules() {
		if !rule.Pass(stats) {
			d.Accepted = false
			d.Notes = append(d.Notes, rule.Name)
		}
	}
	return d
}
