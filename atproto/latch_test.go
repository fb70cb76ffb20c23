package atproto_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/simplerobot/rlm3wifi/atproto"
)

func TestEventLatch_StickyAcrossWaits(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()
	l.Latch(atproto.WifiConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, atproto.Pass, l.Wait(ctx, atproto.WifiConnected, atproto.Error))

	// A second Wait against a different mask still sees the same latched bit.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.Equal(t, atproto.Pass, l.Wait(ctx2, atproto.WifiConnected|atproto.WifiGotIP, atproto.Error))
}

func TestEventLatch_FailTakesPriority(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()
	l.Latch(atproto.OK)
	l.Latch(atproto.Error)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Equal(t, atproto.Fail, l.Wait(ctx, atproto.OK, atproto.Error))
}

func TestEventLatch_Timeout(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Equal(t, atproto.Timeout, l.Wait(ctx, atproto.OK, atproto.Error))
}

func TestEventLatch_WaitUnblocksOnLatch(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan atproto.Outcome, 1)
	go func() { done <- l.Wait(ctx, atproto.OK, atproto.Error) }()

	time.Sleep(10 * time.Millisecond)
	l.Latch(atproto.OK)

	select {
	case out := <-done:
		assert.Equal(t, atproto.Pass, out)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Wait did not unblock on Latch")
	}
}

func TestEventLatch_BeginPanicsWhenInFlight(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()
	assert.Panics(t, func() { l.Begin() })
}

func TestEventLatch_EndAllowsNextBegin(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()
	l.End()
	assert.NotPanics(t, func() { l.Begin() })
}

func TestEventLatch_BeginClearsPreviousBits(t *testing.T) {
	l := atproto.NewEventLatch()
	l.Begin()
	l.Latch(atproto.OK)
	l.End()

	l.Begin()
	assert.Equal(t, atproto.Flag(0), l.Bits())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Pass", atproto.Pass.String())
	assert.Equal(t, "Fail", atproto.Fail.String())
	assert.Equal(t, "Timeout", atproto.Timeout.String())
}
