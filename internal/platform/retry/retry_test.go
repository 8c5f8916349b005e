package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCapsMultiplier(t *testing.T) {
	policy := Policy{Multiplier: 50, InitialInterval: time.Second, MaxInterval: time.Millisecond}.Normalize()
	assert.Equal(t, MaxMultiplier, policy.Multiplier)
	assert.Equal(t, time.Second, policy.MaxInterval)
	assert.Equal(t, DefaultPolicy.MaxElapsedTime, policy.MaxElapsedTime)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	notified := 0
	err := Do(context.Background(), Policy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error, time.Duration) { notified++ })
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 2, notified)
}

func TestDoStopsAtMaxTries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Policy{InitialInterval: time.Millisecond, MaxTries: 2}, func() error {
		attempts++
		return errors.New("down")
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoStopsOnPermanent(t *testing.T) {
	attempts := 0
	boom := errors.New("bad request")
	err := Do(context.Background(), Policy{InitialInterval: time.Millisecond}, func() error {
		attempts++
		return Permanent(boom)
	}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}
