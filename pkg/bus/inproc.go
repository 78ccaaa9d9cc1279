package bus

import (
	"context"
	"sync"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Endpoint is one side of an in-process channel pair. Used for sim runs and
// tests, where scheduler and engine share a process.
type Endpoint struct {
	mu      sync.RWMutex
	handler Handler
	peer    *Endpoint
	closed  bool
}

// NewPair creates two connected endpoints.
func NewPair() (*Endpoint, *Endpoint) {
	a := &Endpoint{}
	b := &Endpoint{}
	a.peer = b
	b.peer = a
	return a, b
}

// SetHandler registers the inbound handler. Until a handler is set the
// endpoint is "not ready" and sends to it fail with ErrReceiverNotReady.
func (e *Endpoint) SetHandler(h Handler) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

// Send delivers an envelope to the peer and returns its response.
func (e *Endpoint) Send(ctx context.Context, env types.Envelope) (types.Response, error) {
	e.mu.RLock()
	closed := e.closed
	peer := e.peer
	e.mu.RUnlock()

	if closed {
		return types.Response{}, ErrChannelClosed
	}

	peer.mu.RLock()
	peerClosed := peer.closed
	handler := peer.handler
	peer.mu.RUnlock()

	if peerClosed {
		return types.Response{}, ErrChannelClosed
	}
	if handler == nil {
		return types.Response{}, ErrReceiverNotReady
	}

	return handler(ctx, env), nil
}

// Close tears the endpoint down permanently.
func (e *Endpoint) Close() {
	e.mu.Lock()
	e.closed = true
	e.handler = nil
	e.mu.Unlock()
}

// LocalTabGateway presents a single in-process endpoint as a one-tab gateway.
type LocalTabGateway struct {
	tab      types.TabInfo
	endpoint *Endpoint
}

// NewLocalTabGateway wraps an endpoint as the only available tab.
func NewLocalTabGateway(tab types.TabInfo, endpoint *Endpoint) *LocalTabGateway {
	return &LocalTabGateway{tab: tab, endpoint: endpoint}
}

// QueryTabs lists the single local tab.
func (g *LocalTabGateway) QueryTabs(ctx context.Context) ([]types.TabInfo, error) {
	return []types.TabInfo{g.tab}, nil
}

// SendToTab delivers to the local tab, or fails with ErrTabGone for any
// other id.
func (g *LocalTabGateway) SendToTab(ctx context.Context, tabID string, env types.Envelope) (types.Response, error) {
	if tabID != g.tab.ID {
		return types.Response{}, ErrTabGone
	}
	return g.endpoint.Send(ctx, env)
}
