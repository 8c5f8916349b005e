// Package retry runs operations under a bounded exponential backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// MaxMultiplier bounds the growth factor between attempts.
const MaxMultiplier = 10.0

// Policy describes a bounded exponential backoff.
type Policy struct {
	InitialInterval time.Duration `yaml:"initial_interval"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MaxElapsedTime  time.Duration `yaml:"max_elapsed_time"`
	MaxTries        uint          `yaml:"max_tries"`
}

// DefaultPolicy is used for zero fields.
var DefaultPolicy = Policy{
	InitialInterval: 100 * time.Millisecond,
	Multiplier:      2,
	MaxInterval:     5 * time.Second,
	MaxElapsedTime:  30 * time.Second,
}

// Normalize fills zero fields from DefaultPolicy and caps the multiplier.
func (p Policy) Normalize() Policy {
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultPolicy.InitialInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	if p.Multiplier > MaxMultiplier {
		p.Multiplier = MaxMultiplier
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultPolicy.MaxInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = p.InitialInterval
	}
	if p.MaxElapsedTime <= 0 {
		p.MaxElapsedTime = DefaultPolicy.MaxElapsedTime
	}
	return p
}

// Notify is called before each wait with the failed attempt's error.
type Notify func(err error, wait time.Duration)

// Do runs op until it succeeds, returns a Permanent error, ctx ends or the
// policy is exhausted. The last error is returned.
func Do(ctx context.Context, policy Policy, op func() error, notify Notify) error {
	policy = policy.Normalize()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.Multiplier = policy.Multiplier
	b.MaxInterval = policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
	}
	if policy.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(policy.MaxTries))
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, opts...)
	return err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
