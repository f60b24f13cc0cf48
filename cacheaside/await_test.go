package cacheaside

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysInFlight(context.Context) (bool, error)  { return true, nil }
func neverInFlight(context.Context) (bool, error)   { return false, nil }
func neverFound(context.Context) (string, bool, error) { return "", false, nil }

func TestAwaitProductionImmediateHit(t *testing.T) {
	val, found, err := AwaitProduction(context.Background(),
		func(context.Context) (string, bool, error) { return "42", true, nil },
		alwaysInFlight, 5, FixedInterval(time.Hour))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "42", val)
}

func TestAwaitProductionNoProducer(t *testing.T) {
	// No flight marker means no one is producing: return absent immediately
	// so the caller can become the producer.
	start := time.Now()
	_, found, err := AwaitProduction(context.Background(), neverFound, neverInFlight, 5, FixedInterval(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitProductionBudgetExhausted(t *testing.T) {
	retries := 3
	interval := 20 * time.Millisecond

	start := time.Now()
	_, found, err := AwaitProduction(context.Background(), neverFound, alwaysInFlight, retries, FixedInterval(interval))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.False(t, found)
	// Bounded by retries * interval plus scheduling slack.
	assert.GreaterOrEqual(t, elapsed, time.Duration(retries)*interval)
	assert.Less(t, elapsed, time.Duration(retries)*interval+200*time.Millisecond)
}

func TestAwaitProductionValueAppearsMidWait(t *testing.T) {
	var polls int32
	get := func(context.Context) (string, bool, error) {
		if atomic.AddInt32(&polls, 1) >= 3 {
			return "produced", true, nil
		}
		return "", false, nil
	}

	val, found, err := AwaitProduction(context.Background(), get, alwaysInFlight, 10, FixedInterval(5*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "produced", val)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestAwaitProductionGetError(t *testing.T) {
	boom := errors.New("store down")
	_, _, err := AwaitProduction(context.Background(),
		func(context.Context) (string, bool, error) { return "", false, boom },
		alwaysInFlight, 5, FixedInterval(time.Millisecond))
	assert.ErrorIs(t, err, boom)
}

func TestAwaitProductionInFlightError(t *testing.T) {
	boom := errors.New("store down")
	_, _, err := AwaitProduction(context.Background(), neverFound,
		func(context.Context) (bool, error) { return false, boom },
		5, FixedInterval(time.Millisecond))
	assert.ErrorIs(t, err, boom)
}

func TestAwaitProductionContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := AwaitProduction(ctx, neverFound, alwaysInFlight, 100, FixedInterval(time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaitProductionZeroRetries(t *testing.T) {
	_, found, err := AwaitProduction(context.Background(), neverFound, alwaysInFlight, 0, FixedInterval(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}
