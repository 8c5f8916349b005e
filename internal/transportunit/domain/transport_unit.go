package transportunit

import (
	"context"
	"strings"
	"time"

	location "wms-core/internal/location/domain"
)

// Unit states.
const (
	StateAvailable         = "AVAILABLE"
	StateDeletionRequested = "DELETION_REQUESTED"
)

// UnitError is one entry of the append-only error list.
type UnitError struct {
	Code       string
	Message    string
	OccurredAt time.Time
}

// TransportUnit is a trackable carrier such as a pallet or carton.
type TransportUnit struct {
	PKey                  string
	Barcode               string
	ActualLocation        location.LocationPK
	ActualLocationErpCode string
	TargetLocation        *location.LocationPK
	Type                  string
	State                 string
	Errors                []UnitError
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NormalizeBarcode trims and validates a barcode.
func NormalizeBarcode(raw string) (string, error) {
	barcode := strings.TrimSpace(raw)
	if barcode == "" {
		return "", ErrBarcodeInvalid
	}
	return barcode, nil
}

// MoveTo relocates the unit and clears its target.
func (tu *TransportUnit) MoveTo(target location.Location, at time.Time) {
	tu.ActualLocation = target.PK
	tu.ActualLocationErpCode = target.ERPCode
	tu.TargetLocation = nil
	tu.UpdatedAt = at
}

// TransportUnitRepository persists transport units. Lookups return nil, nil
// when nothing matches.
type TransportUnitRepository interface {
	FindByBarcode(ctx context.Context, barcode string) (*TransportUnit, error)
	Create(ctx context.Context, tu *TransportUnit) error
	Save(ctx context.Context, tu *TransportUnit) error
	AppendError(ctx context.Context, pkey string, unitErr UnitError) error
	Delete(ctx context.Context, pkey string) error
}
