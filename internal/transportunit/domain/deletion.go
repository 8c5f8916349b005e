package transportunit

import "strings"

// DeletionMode selects how delete requests are carried out.
type DeletionMode string

const (
	// DeletionImmediate removes the unit at once.
	DeletionImmediate DeletionMode = "IMMEDIATE"
	// DeletionOnAccept asks registered replicas first and deletes on acceptance.
	DeletionOnAccept DeletionMode = "ON_ACCEPT"
)

// ParseDeletionMode parses a configured mode.
func ParseDeletionMode(raw string) (DeletionMode, error) {
	switch mode := DeletionMode(strings.ToUpper(strings.TrimSpace(raw))); mode {
	case DeletionImmediate, DeletionOnAccept:
		return mode, nil
	default:
		return "", ErrDeletionModeUnknown.With("deletion_mode", raw)
	}
}
