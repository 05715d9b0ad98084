package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateAt_SlowStartSchedule(t *testing.T) {
	l := NewWithRampInterval(100, true, time.Second)

	// Begins at target/10, raises by ceil(target/10) every interval, caps at
	// the target.
	assert.Equal(t, 10, l.rateAt(0))
	assert.Equal(t, 10, l.rateAt(900*time.Millisecond))
	assert.Equal(t, 20, l.rateAt(time.Second))
	assert.Equal(t, 50, l.rateAt(4*time.Second))
	assert.Equal(t, 100, l.rateAt(9*time.Second))
	assert.Equal(t, 100, l.rateAt(time.Hour))
}

func TestRateAt_RoundsStepUp(t *testing.T) {
	l := NewWithRampInterval(15, true, time.Second)

	// base = max(1, 15/10) = 1, step = ceil(15/10) = 2.
	assert.Equal(t, 1, l.rateAt(0))
	assert.Equal(t, 3, l.rateAt(time.Second))
	assert.Equal(t, 13, l.rateAt(6*time.Second))
	assert.Equal(t, 15, l.rateAt(7*time.Second))
	assert.Equal(t, 15, l.rateAt(8*time.Second))
}

func TestRateAt_TinyTargetStartsAtOne(t *testing.T) {
	l := NewWithRampInterval(1, true, time.Second)

	assert.Equal(t, 1, l.rateAt(0))
	assert.Equal(t, 1, l.rateAt(10*time.Second))
}

func TestCurrentRate_SlowStartOff(t *testing.T) {
	l := New(50, false)

	assert.Equal(t, 50, l.CurrentRate(), "without slow start the limiter runs at target immediately")
}

func TestWait_PacesAcquisitions(t *testing.T) {
	// 20/sec, no slow start: the initial burst hands out 20 permits at once,
	// after which each permit takes ~50ms. 30 permits must therefore take at
	// least ~500ms and at most ~1.1x the schedule.
	l := New(20, false)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 30; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond, "10 post-burst permits at 20/sec need ~500ms")
	assert.Less(t, elapsed, time.Second, "acquisition rate fell far below target")
}

func TestWait_SlowStartThrottlesEarly(t *testing.T) {
	// target 100, slow start: first second runs at 10/sec with capacity 10.
	// 15 permits need the burst plus 5 refills, ~500ms.
	l := NewWithRampInterval(100, true, 10*time.Second)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 15; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond, "ramp must cap the early rate at target/10")
}

func TestWait_Cancellation(t *testing.T) {
	l := New(1, false)
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the initial burst so the next Wait blocks.
	require.NoError(t, l.Wait(ctx))

	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Wait did not return after cancellation")
	}
}
