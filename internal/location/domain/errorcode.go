package location

import "strconv"

// Telegram layout. Positions are 0-indexed from the left.
const (
	ErrorCodeLength   = 8
	StateInPosition   = 7
	StateOutPosition  = 6
	errorCodeNoError  = '0'
	errorCodeError    = '1'
	errorCodeDontCare = '*'
)

// Presets for callers that toggle directions.
const (
	LockStateIn         = "*******1"
	UnlockStateIn       = "*******0"
	LockStateOut        = "******1*"
	UnlockStateOut      = "******0*"
	LockStateInAndOut   = "******11"
	UnlockStateInAndOut = "******00"
)

// ErrorCode is a validated 8 character PLC telegram. Unused positions are
// kept verbatim.
type ErrorCode string

// ParseErrorCode validates raw.
func ParseErrorCode(raw string) (ErrorCode, error) {
	if raw == "" {
		return "", ErrErrorCodeEmpty
	}
	if len(raw) != ErrorCodeLength {
		return "", ErrErrorCodeInvalid.With("error_code", raw).With("length", strconv.Itoa(len(raw)))
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case errorCodeNoError, errorCodeError, errorCodeDontCare:
		default:
			return "", ErrErrorCodeInvalid.With("error_code", raw).With("position", strconv.Itoa(i))
		}
	}
	return ErrorCode(raw), nil
}

// MustErrorCode parses a known-good literal such as a preset.
func MustErrorCode(raw string) ErrorCode {
	code, err := ParseErrorCode(raw)
	if err != nil {
		panic(err)
	}
	return code
}

// String returns the raw telegram.
func (c ErrorCode) String() string { return string(c) }

// LocationIn decodes the infeed bit. asserted is false for '*'.
func (c ErrorCode) LocationIn() (active bool, asserted bool) {
	return c.locationBit(StateInPosition)
}

// LocationOut decodes the outfeed bit. asserted is false for '*'.
func (c ErrorCode) LocationOut() (active bool, asserted bool) {
	return c.locationBit(StateOutPosition)
}

// GroupIn decodes the infeed bit as a group state.
func (c ErrorCode) GroupIn() GroupState {
	return c.groupBit(StateInPosition)
}

// GroupOut decodes the outfeed bit as a group state.
func (c ErrorCode) GroupOut() GroupState {
	return c.groupBit(StateOutPosition)
}

// AssertsIn reports whether the infeed bit carries a value.
func (c ErrorCode) AssertsIn() bool {
	_, asserted := c.LocationIn()
	return asserted
}

// AssertsOut reports whether the outfeed bit carries a value.
func (c ErrorCode) AssertsOut() bool {
	_, asserted := c.LocationOut()
	return asserted
}

func (c ErrorCode) locationBit(pos int) (bool, bool) {
	if len(c) != ErrorCodeLength {
		return false, false
	}
	switch c[pos] {
	case errorCodeDontCare:
		return false, false
	case errorCodeNoError:
		return true, true
	default:
		return false, true
	}
}

func (c ErrorCode) groupBit(pos int) GroupState {
	if len(c) == ErrorCodeLength && c[pos] == errorCodeNoError {
		return GroupStateAvailable
	}
	return GroupStateNotAvailable
}
