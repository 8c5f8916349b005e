// Package notify calls registered replicas when transport units are removed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wms-core/internal/eventing"
	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/retry"
	replica "wms-core/internal/replica/domain"
	"wms-core/internal/transportunit/application/events"
)

// ConsumerName identifies the notifier in the processed-events store.
const ConsumerName = "replica-notifier"

const (
	KindRequestRemoval = "request_removal"
	KindRemoval        = "removal"
)

const defaultTimeout = 5 * time.Second

// ReplicaLister returns the replicas to call.
type ReplicaLister interface {
	ListRegistered(ctx context.Context) ([]replica.Replica, error)
}

// RemovalNotice is the callback body.
type RemovalNotice struct {
	Barcode string `json:"barcode"`
	PKey    string `json:"pKey"`
}

// Notifier posts removal notices to replica endpoints.
type Notifier struct {
	replicas ReplicaLister
	client   *resty.Client
	policy   retry.Policy
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures the notifier.
type Option func(*Notifier)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.timeout = timeout
		}
	}
}

// WithRetryPolicy sets the backoff used per endpoint.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(n *Notifier) {
		n.policy = policy
	}
}

// WithClient replaces the HTTP client.
func WithClient(client *resty.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs a notifier.
func NewNotifier(replicas ReplicaLister, opts ...Option) (*Notifier, error) {
	if replicas == nil {
		return nil, errors.New("replica notifier: nil replica lister")
	}
	n := &Notifier{
		replicas: replicas,
		policy:   retry.Policy{MaxTries: 3},
		timeout:  defaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.client == nil {
		n.client = resty.New()
	}
	n.client.SetTimeout(n.timeout).SetHeader("Content-Type", "application/json")
	return n, nil
}

// Subscribe attaches the notifier to both removal events.
func (n *Notifier) Subscribe(bus eventing.EventBus, processed eventing.ProcessedStore) {
	eventing.Subscribe(bus, eventing.EventTypeOf[events.TransportUnitDeletionRequested](), ConsumerName+"."+KindRequestRemoval, n.HandleDeletionRequested, processed)
	eventing.Subscribe(bus, eventing.EventTypeOf[events.TransportUnitDeleted](), ConsumerName+"."+KindRemoval, n.HandleDeleted, processed)
}

// HandleDeletionRequested calls every requestRemovalEndpoint.
func (n *Notifier) HandleDeletionRequested(ctx context.Context, event any) error {
	var notice RemovalNotice
	switch e := event.(type) {
	case events.TransportUnitDeletionRequested:
		notice = RemovalNotice{Barcode: e.Barcode, PKey: e.PKey}
	case *events.TransportUnitDeletionRequested:
		notice = RemovalNotice{Barcode: e.Barcode, PKey: e.PKey}
	default:
		return fmt.Errorf("replica notifier: unexpected event %T", event)
	}
	n.fanOut(ctx, KindRequestRemoval, notice, func(r replica.Replica) string { return r.RequestRemovalEndpoint })
	return nil
}

// HandleDeleted calls every removalEndpoint.
func (n *Notifier) HandleDeleted(ctx context.Context, event any) error {
	var notice RemovalNotice
	switch e := event.(type) {
	case events.TransportUnitDeleted:
		notice = RemovalNotice{Barcode: e.Barcode, PKey: e.PKey}
	case *events.TransportUnitDeleted:
		notice = RemovalNotice{Barcode: e.Barcode, PKey: e.PKey}
	default:
		return fmt.Errorf("replica notifier: unexpected event %T", event)
	}
	n.fanOut(ctx, KindRemoval, notice, func(r replica.Replica) string { return r.RemovalEndpoint })
	return nil
}

// fanOut never fails the originating event: callback errors are logged.
func (n *Notifier) fanOut(ctx context.Context, kind string, notice RemovalNotice, endpoint func(replica.Replica) string) {
	replicas, err := n.replicas.ListRegistered(ctx)
	if err != nil {
		n.logger.Error("replica lookup failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	for _, r := range replicas {
		url := endpoint(r)
		if url == "" {
			continue
		}
		if err := n.post(ctx, url, notice); err != nil {
			metrics.IncReplicaCallback(kind, metrics.ResultError)
			n.logger.Warn("replica callback failed",
				zap.String("application_name", r.ApplicationName),
				zap.String("kind", kind),
				zap.String("endpoint", url),
				zap.String("barcode", notice.Barcode),
				zap.Error(err),
			)
			continue
		}
		metrics.IncReplicaCallback(kind, metrics.ResultSuccess)
		n.logger.Debug("replica callback sent",
			zap.String("application_name", r.ApplicationName),
			zap.String("kind", kind),
			zap.String("barcode", notice.Barcode),
		)
	}
}

func (n *Notifier) post(ctx context.Context, url string, notice RemovalNotice) error {
	return retry.Do(ctx, n.policy, func() error {
		resp, err := n.client.R().SetContext(ctx).SetBody(notice).Post(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			err := fmt.Errorf("replica callback: status %d", resp.StatusCode())
			if resp.StatusCode() < http.StatusInternalServerError {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	}, nil)
}
