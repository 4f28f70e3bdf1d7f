package network_test

import (
	"errors"
	"testing"
	"time"

	"github.com/readhaven/cover-services/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("connection refused")

func TestCircuitBreakerClosed(t *testing.T) {
	cb := network.NewCircuitBreaker(3, 100*time.Millisecond)
	err := cb.Execute(func() error { return nil })
	assert.Nil(t, err)
	assert.Equal(t, network.BreakerClosed, cb.CurrentState())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := network.NewCircuitBreaker(3, 100*time.Millisecond)
	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errProviderDown })
		assert.Equal(t, errProviderDown, err)
	}
	assert.Equal(t, network.BreakerOpen, cb.CurrentState())

	// While open, calls are rejected without running fn.
	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	assert.True(t, errors.Is(err, network.ErrCircuitOpen))
	assert.False(t, called)
}

func TestCircuitBreakerRecovers(t *testing.T) {
	cb := network.NewCircuitBreaker(2, 30*time.Millisecond)
	cb.Execute(func() error { return errProviderDown })
	cb.Execute(func() error { return errProviderDown })
	require.Equal(t, network.BreakerOpen, cb.CurrentState())

	time.Sleep(40 * time.Millisecond)

	// First call after the cooldown probes the service and closes the
	// breaker on success.
	err := cb.Execute(func() error { return nil })
	assert.Nil(t, err)
	assert.Equal(t, network.BreakerClosed, cb.CurrentState())
}

func TestCircuitBreakerReopensOnProbeFailure(t *testing.T) {
	cb := network.NewCircuitBreaker(1, 30*time.Millisecond)
	cb.Execute(func() error { return errProviderDown })
	require.Equal(t, network.BreakerOpen, cb.CurrentState())

	time.Sleep(40 * time.Millisecond)

	cb.Execute(func() error { return errProviderDown })
	assert.Equal(t, network.BreakerOpen, cb.CurrentState())
}
