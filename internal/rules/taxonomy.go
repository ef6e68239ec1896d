package rules

import "strings"

// Taxonomy maps a firm's published program identifiers to display names,
// and any externally observed alias strings to a canonical program id.
// Used only by the resolver and the review path; the monitor engine always
// sees resolved Rules, never a Taxonomy.
type Taxonomy struct {
	Firm             string
	OfficialPrograms map[string]string // program_id -> display name
	Aliases          map[string]string // alias -> program_id
}

// Canonicalize resolves an externally observed program string to its
// canonical id, following one alias hop. If programID is already a known
// official id, or is unknown entirely, it is returned unchanged.
func (t Taxonomy) Canonicalize(programID string) string {
	if _, ok := t.OfficialPrograms[programID]; ok {
		return programID
	}
	if canon, ok := t.Aliases[programID]; ok {
		return canon
	}
	return programID
}

// NormalizeFirm lowercases, trims, and collapses internal whitespace, the
// same normalization the preset registry's lookup key uses.
func NormalizeFirm(firm string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(firm)))
	return strings.Join(fields, " ")
}
