package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerFacts_IP(t *testing.T) {
	facts := ContainerFacts{
		Networks: map[string]Network{
			"mysite_default": {IPAddress: "10.0.0.5"},
			"bridge":         {IPAddress: "172.17.0.2"},
		},
	}

	assert.Equal(t, "10.0.0.5", facts.IP("mysite_default"))
	// Unknown network falls back to any attached address.
	got := facts.IP("other")
	assert.Contains(t, []string{"10.0.0.5", "172.17.0.2"}, got)
	assert.Equal(t, "", ContainerFacts{}.IP("any"))
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestRetry_SingleAttemptFloor(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 0, time.Millisecond, func() error {
		calls++
		return errors.New("once")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	boom := errors.New("boom")
	err := Retry(ctx, 10, 50*time.Millisecond, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
