package search

import "strings"

// Filters are the optional attribute constraints of a search.
// Empty strings mean "no constraint".
type Filters struct {
	Typology    string `json:"typology,omitempty"`
	ClimateBin  string `json:"climate_bin,omitempty"`
	MassingType string `json:"massing_type,omitempty"`
	// Strict drops results that mismatch any set attribute instead of penalising them.
	Strict bool `json:"strict,omitempty"`
}

// Normalize trims whitespace from every attribute.
func (f Filters) Normalize() Filters {
	return Filters{
		Typology:    strings.TrimSpace(f.Typology),
		ClimateBin:  strings.TrimSpace(f.ClimateBin),
		MassingType: strings.TrimSpace(f.MassingType),
		Strict:      f.Strict,
	}
}

// IsZero reports whether no constraint is set.
func (f Filters) IsZero() bool {
	return f.Typology == "" && f.ClimateBin == "" && f.MassingType == "" && !f.Strict
}
