package resilience

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerManagerTripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 2
	m := NewBreakerManager(cfg)

	failingFn := func() (interface{}, error) { return nil, errors.New("boom") }

	_, err := m.Execute("okx", failingFn)
	require.Error(t, err)
	_, err = m.Execute("okx", failingFn)
	require.Error(t, err)

	assert.Equal(t, gobreaker.StateOpen, m.State("okx"))

	_, err = m.Execute("okx", failingFn)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerManagerIsolatesSources(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 1
	m := NewBreakerManager(cfg)

	_, _ = m.Execute("okx", func() (interface{}, error) { return nil, errors.New("boom") })
	assert.Equal(t, gobreaker.StateOpen, m.State("okx"))
	assert.Equal(t, gobreaker.StateClosed, m.State("binance"))
}

func TestBreakerManagerUnknownSourceIsClosed(t *testing.T) {
	m := NewBreakerManager(DefaultBreakerConfig())
	assert.Equal(t, gobreaker.StateClosed, m.State("never-seen"))
}
