package language

import "strings"

// CleanList trims surrounding whitespace from every entry of raw and keeps
// each identifier otherwise as sent, in input order. Identifiers are result
// keys, so case and spelling are preserved ("FR" and "fr" are distinct).
// It returns the index of the first blank entry, or of the first exact
// duplicate after trimming, together with ok=false.
func CleanList(raw []string) (cleaned []string, badIndex int, ok bool) {
	cleaned = make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i, value := range raw {
		tag := strings.TrimSpace(value)
		if tag == "" {
			return nil, i, false
		}
		if _, dup := seen[tag]; dup {
			return nil, i, false
		}
		seen[tag] = struct{}{}
		cleaned = append(cleaned, tag)
	}
	return cleaned, -1, true
}
