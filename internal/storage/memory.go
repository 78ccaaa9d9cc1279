package storage

import (
	"context"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/tbencze/alpha-pilot/internal/state"
	"go.uber.org/zap"
)

// MemoryStore is an in-process Store used for sim runs and tests.
type MemoryStore struct {
	logger *zap.Logger

	mu          sync.Mutex
	current     *state.SchedulerState
	subscribers []func(state.SchedulerState)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{logger: logger}
}

// Get returns a deep copy of the current state, creating defaults on first read.
func (m *MemoryStore) Get(ctx context.Context) (*state.SchedulerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.current = state.NewDefault()
		m.logger.Debug("memory-store-initialized")
	}

	return cloneState(m.current)
}

// Set overwrites the stored state and notifies subscribers.
func (m *MemoryStore) Set(ctx context.Context, st *state.SchedulerState) error {
	m.mu.Lock()
	copied, err := cloneState(st)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = copied
	subs := make([]func(state.SchedulerState), len(m.subscribers))
	copy(subs, m.subscribers)
	snapshot := *copied
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}

	return nil
}

// Update applies a read-modify-write transform under the store mutex, so
// concurrent transforms never interleave.
func (m *MemoryStore) Update(ctx context.Context, transform func(*state.SchedulerState)) (*state.SchedulerState, error) {
	m.mu.Lock()

	if m.current == nil {
		m.current = state.NewDefault()
	}

	next, err := cloneState(m.current)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	transform(next)
	m.current = next

	subs := make([]func(state.SchedulerState), len(m.subscribers))
	copy(subs, m.subscribers)
	snapshot := *next
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}

	result, err := cloneState(next)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Subscribe registers a change callback.
func (m *MemoryStore) Subscribe(onChange func(state.SchedulerState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, onChange)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// cloneState deep-copies via the JSON codec so callers can never alias the
// stored record.
func cloneState(st *state.SchedulerState) (*state.SchedulerState, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var copied state.SchedulerState
	err = json.Unmarshal(raw, &copied)
	if err != nil {
		return nil, err
	}
	return &copied, nil
}
