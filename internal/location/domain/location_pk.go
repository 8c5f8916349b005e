package location

import "strings"

const pkSeparator = "/"

// LocationPK is the 5-part coordinate key of a location.
type LocationPK struct {
	Area  string `json:"area"`
	Aisle string `json:"aisle"`
	X     string `json:"x"`
	Y     string `json:"y"`
	Z     string `json:"z"`
}

// ParseLocationPK parses "AREA/AISLE/X/Y/Z".
func ParseLocationPK(raw string) (LocationPK, error) {
	parts := strings.Split(raw, pkSeparator)
	if len(parts) != 5 {
		return LocationPK{}, ErrLocationPKInvalid.With("location_pk", raw)
	}
	pk := LocationPK{Area: parts[0], Aisle: parts[1], X: parts[2], Y: parts[3], Z: parts[4]}
	if err := pk.Validate(); err != nil {
		return LocationPK{}, ErrLocationPKInvalid.With("location_pk", raw)
	}
	return pk, nil
}

// Validate checks that every segment is set.
func (pk LocationPK) Validate() error {
	for _, part := range []string{pk.Area, pk.Aisle, pk.X, pk.Y, pk.Z} {
		if strings.TrimSpace(part) == "" || strings.Contains(part, pkSeparator) {
			return ErrLocationPKInvalid.With("location_pk", pk.String())
		}
	}
	return nil
}

// IsZero reports whether no segment is set.
func (pk LocationPK) IsZero() bool {
	return pk == LocationPK{}
}

func (pk LocationPK) String() string {
	return strings.Join([]string{pk.Area, pk.Aisle, pk.X, pk.Y, pk.Z}, pkSeparator)
}
