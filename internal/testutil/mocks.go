package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/tbencze/alpha-pilot/pkg/notify"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Notification is one captured notifier call.
type Notification struct {
	Level   notify.Level
	Title   string
	Message string
}

// FakeNotifier records notifications instead of delivering them.
type FakeNotifier struct {
	mu    sync.Mutex
	Calls []Notification
	Err   error
}

// NewFakeNotifier creates an empty recorder.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// Notify records the call.
func (f *FakeNotifier) Notify(ctx context.Context, level notify.Level, title, message string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, Notification{Level: level, Title: title, Message: message})
	f.mu.Unlock()
	return f.Err
}

// Recorded returns a copy of the captured notifications.
func (f *FakeNotifier) Recorded() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.Calls))
	copy(out, f.Calls)
	return out
}

// SentEnvelope is one captured Send call.
type SentEnvelope struct {
	Envelope types.Envelope
	At       time.Time
}

// FakeSender records envelopes and answers with scripted responses.
type FakeSender struct {
	mu        sync.Mutex
	Sent      []SentEnvelope
	Response  types.Response
	Err       error
	ErrByKind map[types.Kind]error
}

// NewFakeSender creates a sender that acknowledges everything.
func NewFakeSender() *FakeSender {
	return &FakeSender{Response: types.Ack()}
}

// Send records the envelope.
func (f *FakeSender) Send(ctx context.Context, env types.Envelope) (types.Response, error) {
	f.mu.Lock()
	f.Sent = append(f.Sent, SentEnvelope{Envelope: env, At: time.Now()})
	err := f.Err
	if kindErr, ok := f.ErrByKind[env.Kind]; ok {
		err = kindErr
	}
	resp := f.Response
	f.mu.Unlock()

	if err != nil {
		return types.Response{}, err
	}
	return resp, nil
}

// SentKinds lists the kinds sent, in order.
func (f *FakeSender) SentKinds() []types.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]types.Kind, 0, len(f.Sent))
	for _, s := range f.Sent {
		kinds = append(kinds, s.Envelope.Kind)
	}
	return kinds
}

// SentEnvelopes returns a copy of the captured sends.
func (f *FakeSender) SentEnvelopes() []SentEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentEnvelope, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// SetErr scripts a global send failure.
func (f *FakeSender) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}

// FakeTabGateway serves a scripted tab list and delegates sends.
type FakeTabGateway struct {
	mu       sync.Mutex
	Tabs     []types.TabInfo
	SendFunc func(ctx context.Context, tabID string, env types.Envelope) (types.Response, error)
	SendLog  []string
	KindLog  []types.Kind
}

// QueryTabs returns the scripted tabs.
func (f *FakeTabGateway) QueryTabs(ctx context.Context) ([]types.TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.TabInfo, len(f.Tabs))
	copy(out, f.Tabs)
	return out, nil
}

// SendToTab logs the target and kind, then delegates to SendFunc.
func (f *FakeTabGateway) SendToTab(ctx context.Context, tabID string, env types.Envelope) (types.Response, error) {
	f.mu.Lock()
	f.SendLog = append(f.SendLog, tabID)
	f.KindLog = append(f.KindLog, env.Kind)
	fn := f.SendFunc
	f.mu.Unlock()

	if fn == nil {
		return types.Ack(), nil
	}
	return fn(ctx, tabID, env)
}

// Attempts returns how many sends were made.
func (f *FakeTabGateway) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.SendLog)
}

// Kinds lists the envelope kinds sent, in order.
func (f *FakeTabGateway) Kinds() []types.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Kind, len(f.KindLog))
	copy(out, f.KindLog)
	return out
}
