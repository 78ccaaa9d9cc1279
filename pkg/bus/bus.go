package bus

import (
	"context"
	"errors"

	"github.com/tbencze/alpha-pilot/pkg/types"
)

// Sender delivers an envelope to the counterpart and waits for its response.
type Sender interface {
	Send(ctx context.Context, env types.Envelope) (types.Response, error)
}

// Handler processes one inbound envelope and produces the response that is
// written back to the sender.
type Handler func(ctx context.Context, env types.Envelope) types.Response

// TabGateway exposes the connected page agents ("tabs") to the scheduler.
type TabGateway interface {
	// QueryTabs lists the currently connected tabs.
	QueryTabs(ctx context.Context) ([]types.TabInfo, error)

	// SendToTab delivers an envelope to one tab and waits for its response.
	SendToTab(ctx context.Context, tabID string, env types.Envelope) (types.Response, error)
}

// Delivery failure sentinels. The distinction matters for retry policy:
// a receiver that is not ready yet may come up, a gone tab never will, and a
// closed channel is terminal for the whole endpoint.
var (
	// ErrReceiverNotReady means the tab exists but its agent has not
	// registered a handler yet. Retryable.
	ErrReceiverNotReady = errors.New("receiving end does not exist")

	// ErrTabGone means no tab with the requested id is connected. Not
	// retryable: retrying a nonexistent tab cannot succeed.
	ErrTabGone = errors.New("tab unavailable")

	// ErrChannelClosed means the endpoint has been torn down for good.
	ErrChannelClosed = errors.New("channel closed")
)
