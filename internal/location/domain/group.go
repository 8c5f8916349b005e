package location

import (
	"context"
	"strings"
	"time"
)

// GroupState is the aggregate availability of one direction.
type GroupState string

const (
	GroupStateAvailable    GroupState = "AVAILABLE"
	GroupStateNotAvailable GroupState = "NOT_AVAILABLE"
)

// ParseGroupState parses a state name case-insensitively.
func ParseGroupState(raw string) (GroupState, error) {
	switch GroupState(strings.ToUpper(strings.TrimSpace(raw))) {
	case GroupStateAvailable:
		return GroupStateAvailable, nil
	case GroupStateNotAvailable:
		return GroupStateNotAvailable, nil
	default:
		return "", ErrGroupStateInvalid.With("state", raw)
	}
}

// OperationMode gates whether a group takes part in subsystem operation.
type OperationMode string

const (
	ModeInfeed           OperationMode = "INFEED"
	ModeOutfeed          OperationMode = "OUTFEED"
	ModeInfeedAndOutfeed OperationMode = "INFEED_AND_OUTFEED"
	ModeBlocked          OperationMode = "BLOCKED"
)

// ParseOperationMode parses a mode name case-insensitively.
func ParseOperationMode(raw string) (OperationMode, error) {
	mode := OperationMode(strings.ToUpper(strings.TrimSpace(raw)))
	switch mode {
	case ModeInfeed, ModeOutfeed, ModeInfeedAndOutfeed, ModeBlocked:
		return mode, nil
	default:
		return "", ErrOperationModeInvalid.With("operation_mode", raw)
	}
}

// LocationGroup aggregates locations. It is the authority for whether a
// direction is permitted at its member locations.
type LocationGroup struct {
	Name          string
	ParentName    string
	GroupStateIn  GroupState
	GroupStateOut GroupState
	OperationMode OperationMode
	UpdatedAt     time.Time
}

// IsInfeedAllowed reports whether member locations may change infeed state.
func (g *LocationGroup) IsInfeedAllowed() bool {
	return g == nil || g.GroupStateIn == GroupStateAvailable
}

// IsOutfeedAllowed reports whether member locations may change outfeed state.
func (g *LocationGroup) IsOutfeedAllowed() bool {
	return g == nil || g.GroupStateOut == GroupStateAvailable
}

// AllowsSubsystemOperation is false only for BLOCKED groups.
func (g *LocationGroup) AllowsSubsystemOperation() bool {
	return g.OperationMode != ModeBlocked
}

// GroupTransition records which group states changed.
type GroupTransition struct {
	In  bool
	Out bool
}

// Changed reports whether any state changed.
func (t GroupTransition) Changed() bool {
	return t.In || t.Out
}

// ApplyTelegram decodes code and takes each asserted direction whose decoded
// state differs. Member locations are not touched.
func (g *LocationGroup) ApplyTelegram(code ErrorCode) GroupTransition {
	var t GroupTransition
	if code.AssertsIn() {
		if state := code.GroupIn(); state != g.GroupStateIn {
			g.GroupStateIn = state
			t.In = true
		}
	}
	if code.AssertsOut() {
		if state := code.GroupOut(); state != g.GroupStateOut {
			g.GroupStateOut = state
			t.Out = true
		}
	}
	return t
}

// SetStates assigns both states unconditionally and reports what differed.
func (g *LocationGroup) SetStates(in, out GroupState) GroupTransition {
	t := GroupTransition{In: in != g.GroupStateIn, Out: out != g.GroupStateOut}
	g.GroupStateIn = in
	g.GroupStateOut = out
	return t
}

// SetMode assigns the operation mode and reports whether it differed.
func (g *LocationGroup) SetMode(mode OperationMode) bool {
	if g.OperationMode == mode {
		return false
	}
	g.OperationMode = mode
	return true
}

// GroupRepository persists location groups. Get returns nil, nil when missing.
type GroupRepository interface {
	Get(ctx context.Context, name string) (*LocationGroup, error)
	Save(ctx context.Context, group *LocationGroup) error
	List(ctx context.Context) ([]LocationGroup, error)
}
