// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func TestPostRunsAfterCurrentTask(t *testing.T) {
	loop := NewManual(start)
	var order []string

	loop.Post(func() {
		loop.Post(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})
	loop.Post(func() { order = append(order, "second") })
	assert.Empty(t, order)

	loop.Drain()
	assert.Equal(t, []string{"outer", "second", "inner"}, order)
}

func TestAdvanceFiresTimersInDeadlineOrder(t *testing.T) {
	loop := NewManual(start)
	var fired []string

	loop.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	loop.AfterFunc(1*time.Second, func() {
		fired = append(fired, "a")
		assert.Equal(t, start.Add(time.Second), loop.Now())
	})
	loop.AfterFunc(1*time.Second, func() { fired = append(fired, "b") })

	loop.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(2*time.Second), loop.Now())

	loop.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, loop.PendingTimers())
}

func TestTimerStop(t *testing.T) {
	loop := NewManual(start)
	fired := false
	timer := loop.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Active())
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	assert.False(t, timer.Active())

	loop.Advance(time.Minute)
	assert.False(t, fired)

	var nilTimer *Timer
	assert.False(t, nilTimer.Stop())
}

func TestEveryRepeatsUntilStopped(t *testing.T) {
	loop := NewManual(start)
	ticks := 0
	var ticker *Timer
	ticker = loop.Every(time.Second, func() {
		ticks++
		if ticks == 3 {
			ticker.Stop()
		}
	})

	loop.Advance(10 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.False(t, ticker.Active())
}

func TestZeroDelayTimerFiresOnDrain(t *testing.T) {
	loop := NewManual(start)
	fired := false
	loop.AfterFunc(0, func() { fired = true })

	loop.Drain()
	assert.True(t, fired)
	assert.Equal(t, start, loop.Now())
}

func TestTimerScheduledByTimerFiresWithinSameAdvance(t *testing.T) {
	loop := NewManual(start)
	var at []time.Duration
	loop.AfterFunc(time.Second, func() {
		at = append(at, loop.Now().Sub(start))
		loop.AfterFunc(time.Second, func() { at = append(at, loop.Now().Sub(start)) })
	})

	loop.Advance(5 * time.Second)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, at)
}

func TestRunAndCall(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	fired := make(chan struct{})
	loop.AfterFunc(10*time.Millisecond, func() { close(fired) })

	value := 0
	require.NoError(t, loop.Call(ctx, func() { value = 42 }))
	assert.Equal(t, 42, value)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
