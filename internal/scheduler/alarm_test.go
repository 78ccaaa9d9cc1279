package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerAlarm_FiresRepeatedly(t *testing.T) {
	t.Parallel()

	alarm := NewTickerAlarm()
	defer alarm.Clear()

	var fired atomic.Int32
	alarm.Schedule(10*time.Millisecond, func() { fired.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() < 2 {
		t.Fatalf("fired %d times, want at least 2", fired.Load())
	}
}

func TestTickerAlarm_ClearStopsFiring(t *testing.T) {
	t.Parallel()

	alarm := NewTickerAlarm()

	var fired atomic.Int32
	alarm.Schedule(10*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(35 * time.Millisecond)
	alarm.Clear()
	after := fired.Load()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != after {
		t.Errorf("alarm fired after Clear: %d -> %d", after, fired.Load())
	}
}

func TestTickerAlarm_RescheduleReplaces(t *testing.T) {
	t.Parallel()

	alarm := NewTickerAlarm()
	defer alarm.Clear()

	var first, second atomic.Int32
	alarm.Schedule(10*time.Millisecond, func() { first.Add(1) })
	alarm.Schedule(10*time.Millisecond, func() { second.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for second.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	firstCount := first.Load()
	time.Sleep(50 * time.Millisecond)
	if first.Load() != firstCount {
		t.Error("replaced schedule kept firing")
	}
	if second.Load() == 0 {
		t.Error("replacement schedule never fired")
	}
}
