package storage

import (
	"context"

	"github.com/tbencze/alpha-pilot/internal/state"
)

// Store persists the scheduler state. Implementations serialize Update so
// two read-modify-write transforms never interleave within the process;
// cross-process writers remain last-write-wins.
type Store interface {
	// Get returns the current state, creating the default record on first read.
	Get(ctx context.Context) (*state.SchedulerState, error)

	// Set overwrites the stored state.
	Set(ctx context.Context, st *state.SchedulerState) error

	// Update loads the current state, applies the transform and writes the
	// result back as one serialized step.
	Update(ctx context.Context, transform func(*state.SchedulerState)) (*state.SchedulerState, error)

	// Subscribe registers a callback invoked with a copy of the state after
	// every successful write.
	Subscribe(onChange func(state.SchedulerState))

	// Close releases the underlying resources.
	Close() error
}
