package bus

import "github.com/tbencze/alpha-pilot/pkg/types"

// frame is the websocket wire format. Exactly one of Hello, Envelope or
// Response is set; ID correlates a request with its reply.
type frame struct {
	ID       string          `json:"id,omitempty"`
	Hello    *hello          `json:"hello,omitempty"`
	Envelope *types.Envelope `json:"envelope,omitempty"`
	Response *types.Response `json:"response,omitempty"`
}

// hello registers a page agent with the hub before any traffic flows.
type hello struct {
	TabID  string `json:"tabId,omitempty"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}
