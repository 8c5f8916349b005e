package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"wms-core/internal/platform/txn"
	"wms-core/internal/replica/application/events"
	replica "wms-core/internal/replica/domain"
)

// Registry keeps track of downstream replicas. Register and Unregister are
// upserts keyed by application name.
type Registry struct {
	repo   replica.Repository
	runner txn.Runner
	logger *zap.Logger
	now    func() time.Time
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithRegistryLogger assigns a logger.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryClock overrides the clock.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs a registry.
func NewRegistry(repo replica.Repository, runner txn.Runner, opts ...RegistryOption) (*Registry, error) {
	if repo == nil {
		return nil, errors.New("replica registry: nil repository")
	}
	if runner == nil {
		return nil, errors.New("replica registry: nil runner")
	}
	r := &Registry{
		repo:   repo,
		runner: runner,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register marks the replica REGISTERED and stores its endpoints. Repeating
// an identical registration writes nothing and emits nothing.
func (r *Registry) Register(ctx context.Context, reg replica.Registration) (replica.Replica, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return replica.Replica{}, err
	}
	var out replica.Replica
	err := r.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		existing, err := r.repo.Get(ctx, reg.ApplicationName)
		if err != nil {
			return err
		}
		if existing != nil && existing.Registered() &&
			existing.RequestRemovalEndpoint == reg.RequestRemovalEndpoint &&
			existing.RemovalEndpoint == reg.RemovalEndpoint {
			out = *existing
			return nil
		}

		now := r.now()
		next := replica.Replica{ApplicationName: reg.ApplicationName}
		if existing != nil {
			next = *existing
		}
		next.State = replica.StateRegistered
		next.RequestRemovalEndpoint = reg.RequestRemovalEndpoint
		next.RemovalEndpoint = reg.RemovalEndpoint
		next.RegisteredAt = &now
		next.UnregisteredAt = nil
		if err := r.repo.Upsert(ctx, &next); err != nil {
			return err
		}
		uow.Enqueue(events.ReplicaRegistered{
			ApplicationName:        next.ApplicationName,
			RequestRemovalEndpoint: next.RequestRemovalEndpoint,
			RemovalEndpoint:        next.RemovalEndpoint,
			OccurredAt:             now,
		})
		out = next
		return nil
	})
	if err != nil {
		return replica.Replica{}, err
	}
	r.logger.Info("replica registered", zap.String("application_name", out.ApplicationName))
	return out, nil
}

// Unregister marks the replica UNREGISTERED. Endpoints are kept for audit.
// An unknown name is recorded as unregistered so the call stays idempotent.
func (r *Registry) Unregister(ctx context.Context, reg replica.Registration) (replica.Replica, error) {
	reg = reg.Normalize()
	if reg.ApplicationName == "" {
		return replica.Replica{}, replica.ErrNameMissing
	}
	var out replica.Replica
	err := r.runner.Run(ctx, func(ctx context.Context, uow *txn.UnitOfWork) error {
		existing, err := r.repo.Get(ctx, reg.ApplicationName)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Registered() {
			out = *existing
			return nil
		}

		now := r.now()
		next := replica.Replica{
			ApplicationName:        reg.ApplicationName,
			RequestRemovalEndpoint: reg.RequestRemovalEndpoint,
			RemovalEndpoint:        reg.RemovalEndpoint,
		}
		if existing != nil {
			next = *existing
		}
		next.State = replica.StateUnregistered
		next.UnregisteredAt = &now
		if err := r.repo.Upsert(ctx, &next); err != nil {
			return err
		}
		uow.Enqueue(events.ReplicaUnregistered{ApplicationName: next.ApplicationName, OccurredAt: now})
		out = next
		return nil
	})
	if err != nil {
		return replica.Replica{}, err
	}
	r.logger.Info("replica unregistered", zap.String("application_name", out.ApplicationName))
	return out, nil
}

// Registered lists replicas that receive callbacks.
func (r *Registry) Registered(ctx context.Context) ([]replica.Replica, error) {
	return r.repo.ListRegistered(ctx)
}
