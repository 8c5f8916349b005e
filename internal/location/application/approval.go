package application

import (
	"context"

	location "wms-core/internal/location/domain"
)

// LocationApproval may veto a location state change. A nil approval
// approves everything.
type LocationApproval interface {
	ApproveLocationChange(ctx context.Context, current, proposed location.Location) error
}

// GroupApproval may veto a group state or mode change.
type GroupApproval interface {
	ApproveGroupChange(ctx context.Context, current, proposed location.LocationGroup) error
}

// LocationApprovalFunc adapts a function to LocationApproval.
type LocationApprovalFunc func(ctx context.Context, current, proposed location.Location) error

func (f LocationApprovalFunc) ApproveLocationChange(ctx context.Context, current, proposed location.Location) error {
	return f(ctx, current, proposed)
}

// GroupApprovalFunc adapts a function to GroupApproval.
type GroupApprovalFunc func(ctx context.Context, current, proposed location.LocationGroup) error

func (f GroupApprovalFunc) ApproveGroupChange(ctx context.Context, current, proposed location.LocationGroup) error {
	return f(ctx, current, proposed)
}

func rejected(err error, key, value string) error {
	return location.ErrStateChangeRejected.With(key, value).Because(err)
}
