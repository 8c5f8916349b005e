package location

import (
	"context"
	"time"
)

// PLCStateEmpty marks a location reported empty by the warehouse.
const PLCStateEmpty = -1

// Location is the smallest addressable storage slot.
type Location struct {
	ID            string
	PK            LocationPK
	PLCCode       string
	ERPCode       string
	GroupName     string
	InfeedActive  bool
	OutfeedActive bool
	PLCState      int
	UpdatedAt     time.Time
}

// Transition records which fields a telegram changed.
type Transition struct {
	Infeed   bool
	Outfeed  bool
	PLCState bool
}

// Changed reports whether any field changed.
func (t Transition) Changed() bool {
	return t.Infeed || t.Outfeed || t.PLCState
}

// ApplyTelegram applies a decoded telegram. A direction changes only when the
// telegram asserts it, the value differs and the group permits that
// direction. plcState, when given, is taken whenever it differs. A nil group
// places no restriction.
func (l *Location) ApplyTelegram(code ErrorCode, plcState *int, group *LocationGroup) Transition {
	var t Transition
	if value, asserted := code.LocationIn(); asserted && value != l.InfeedActive && group.IsInfeedAllowed() {
		l.InfeedActive = value
		t.Infeed = true
	}
	if value, asserted := code.LocationOut(); asserted && value != l.OutfeedActive && group.IsOutfeedAllowed() {
		l.OutfeedActive = value
		t.Outfeed = true
	}
	if plcState != nil && *plcState != l.PLCState {
		l.PLCState = *plcState
		t.PLCState = true
	}
	return t
}

// Ref addresses a location by any of its identifiers, tried in field order.
type Ref struct {
	ID      string      `json:"location_id,omitempty"`
	PK      *LocationPK `json:"location_pk,omitempty"`
	PLCCode string      `json:"plc_code,omitempty"`
	ERPCode string      `json:"erp_code,omitempty"`
}

// Validate requires at least one identifier.
func (r Ref) Validate() error {
	if r.ID == "" && r.PK == nil && r.PLCCode == "" && r.ERPCode == "" {
		return ErrLocationRefMissing
	}
	if r.PK != nil {
		return r.PK.Validate()
	}
	return nil
}

func (r Ref) String() string {
	switch {
	case r.ID != "":
		return r.ID
	case r.PK != nil:
		return r.PK.String()
	case r.PLCCode != "":
		return "plc:" + r.PLCCode
	default:
		return "erp:" + r.ERPCode
	}
}

// LocationRepository persists locations. Lookups return nil, nil when
// nothing matches.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*Location, error)
	FindByPK(ctx context.Context, pk LocationPK) (*Location, error)
	FindByPLCCode(ctx context.Context, plcCode string) (*Location, error)
	FindByERPCode(ctx context.Context, erpCode string) (*Location, error)
	Save(ctx context.Context, loc *Location) error
	List(ctx context.Context) ([]Location, error)
}

// Resolve looks a location up by ref and fails with ErrLocationNotFound.
func Resolve(ctx context.Context, repo LocationRepository, ref Ref) (*Location, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	var (
		loc *Location
		err error
	)
	switch {
	case ref.ID != "":
		loc, err = repo.Get(ctx, ref.ID)
	case ref.PK != nil:
		loc, err = repo.FindByPK(ctx, *ref.PK)
	case ref.PLCCode != "":
		loc, err = repo.FindByPLCCode(ctx, ref.PLCCode)
	default:
		loc, err = repo.FindByERPCode(ctx, ref.ERPCode)
	}
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, ErrLocationNotFound.With("location", ref.String())
	}
	return loc, nil
}
