package replica

import (
	"context"
	"net/url"
	"strings"
	"time"

	"wms-core/internal/apperr"
)

var (
	// ErrNameMissing is returned when a registration has no application name.
	ErrNameMissing = apperr.New(apperr.KindInvalidArgument, apperr.CodeReplicaNameMissing, "replica: application name required")
	// ErrEndpointInvalid is returned for a callback endpoint that is not an absolute http(s) URL.
	ErrEndpointInvalid = apperr.New(apperr.KindInvalidArgument, apperr.CodeReplicaEndpointInvalid, "replica: invalid endpoint")
)

// State is the registration state of a replica.
type State string

const (
	StateRegistered   State = "REGISTERED"
	StateUnregistered State = "UNREGISTERED"
)

// Replica is a downstream service that is told about transport unit removals.
type Replica struct {
	ApplicationName        string
	State                  State
	RequestRemovalEndpoint string
	RemovalEndpoint        string
	RegisteredAt           *time.Time
	UnregisteredAt         *time.Time
}

// Registered reports whether the replica currently receives callbacks.
func (r Replica) Registered() bool {
	return r.State == StateRegistered
}

// Registration is the payload of a register or unregister request.
type Registration struct {
	ApplicationName        string `json:"application_name"`
	RequestRemovalEndpoint string `json:"request_removal_endpoint"`
	RemovalEndpoint        string `json:"removal_endpoint"`
}

// Normalize trims every field.
func (r Registration) Normalize() Registration {
	return Registration{
		ApplicationName:        strings.TrimSpace(r.ApplicationName),
		RequestRemovalEndpoint: strings.TrimSpace(r.RequestRemovalEndpoint),
		RemovalEndpoint:        strings.TrimSpace(r.RemovalEndpoint),
	}
}

// Validate checks the name and, when present, that endpoints are absolute URLs.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.ApplicationName) == "" {
		return ErrNameMissing
	}
	for field, raw := range map[string]string{
		"request_removal_endpoint": r.RequestRemovalEndpoint,
		"removal_endpoint":         r.RemovalEndpoint,
	} {
		if err := validateEndpoint(raw); err != nil {
			return ErrEndpointInvalid.With("field", field).Because(err)
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperr.New(apperr.KindInvalidArgument, apperr.CodeReplicaEndpointInvalid, "scheme must be http or https")
	}
	if parsed.Host == "" {
		return apperr.New(apperr.KindInvalidArgument, apperr.CodeReplicaEndpointInvalid, "host required")
	}
	return nil
}

// Repository persists replicas keyed by application name.
type Repository interface {
	Get(ctx context.Context, applicationName string) (*Replica, error)
	Upsert(ctx context.Context, replica *Replica) error
	ListRegistered(ctx context.Context) ([]Replica, error)
}
