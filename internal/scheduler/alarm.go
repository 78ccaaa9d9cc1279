package scheduler

import (
	"sync"
	"time"
)

// AlarmGateway abstracts the periodic wake-up. Schedule replaces any armed
// alarm; Clear disarms it.
type AlarmGateway interface {
	Schedule(interval time.Duration, fire func())
	Clear()
}

// TickerAlarm is an in-process AlarmGateway backed by a ticker goroutine.
type TickerAlarm struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTickerAlarm creates a disarmed alarm.
func NewTickerAlarm() *TickerAlarm {
	return &TickerAlarm{}
}

// Schedule arms the alarm, replacing any previous schedule.
func (a *TickerAlarm) Schedule(interval time.Duration, fire func()) {
	a.Clear()

	a.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	a.stop = stop
	a.done = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fire()
			}
		}
	}()
}

// Clear disarms the alarm and waits for the firing goroutine to exit.
func (a *TickerAlarm) Clear() {
	a.mu.Lock()
	stop := a.stop
	done := a.done
	a.stop = nil
	a.done = nil
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
