package transportunit

import "strings"

// SearchKeyBusinessKey selects a transport unit by barcode.
const SearchKeyBusinessKey = "transportUnitBK"

// SearchAttribute is a typed key/value allocation criterion.
type SearchAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// Validate requires a key.
func (a SearchAttribute) Validate() error {
	if strings.TrimSpace(a.Key) == "" {
		return ErrSearchAttributeInvalid
	}
	return nil
}

// BusinessKey returns the first transportUnitBK value.
func BusinessKey(attrs []SearchAttribute) (string, bool) {
	for _, attr := range attrs {
		if attr.Key == SearchKeyBusinessKey && strings.TrimSpace(attr.Value) != "" {
			return strings.TrimSpace(attr.Value), true
		}
	}
	return "", false
}
