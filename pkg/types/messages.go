package types

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Kind identifies a message on the scheduler<->engine channel. The set is
// closed: envelopes with an unknown kind are rejected at the boundary.
type Kind string

const (
	// Engine-bound commands.
	KindRunTask     Kind = "RUN_TASK"
	KindRunTaskOnce Kind = "RUN_TASK_ONCE"

	// Engine-bound requests expecting a value in the response.
	KindRequestTokenSymbol    Kind = "REQUEST_TOKEN_SYMBOL"
	KindRequestCurrentBalance Kind = "REQUEST_CURRENT_BALANCE"

	// Scheduler-bound reports.
	KindBalanceUpdate        Kind = "BALANCE_UPDATE"
	KindTaskComplete         Kind = "TASK_COMPLETE"
	KindTaskError            Kind = "TASK_ERROR"
	KindOrderHistorySnapshot Kind = "ORDER_HISTORY_SNAPSHOT"

	// Control surface.
	KindControlStart Kind = "CONTROL_START"
	KindControlStop  Kind = "CONTROL_STOP"
	KindFocusWindow  Kind = "FOCUS_WINDOW"
)

// knownKinds is the closed set accepted at the edge.
var knownKinds = map[Kind]bool{
	KindRunTask:               true,
	KindRunTaskOnce:           true,
	KindRequestTokenSymbol:    true,
	KindRequestCurrentBalance: true,
	KindBalanceUpdate:         true,
	KindTaskComplete:          true,
	KindTaskError:             true,
	KindOrderHistorySnapshot:  true,
	KindControlStart:          true,
	KindControlStop:           true,
	KindFocusWindow:           true,
}

// KnownKind reports whether k is part of the closed message set.
func KnownKind(k Kind) bool {
	return knownKinds[k]
}

// Envelope is the wire form of a message: a kind tag plus a kind-specific
// payload. Payload is empty for messages that carry none.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope for the given kind. A nil payload produces
// an envelope without a payload.
func NewEnvelope(kind Kind, payload interface{}) (Envelope, error) {
	env := Envelope{Kind: kind}
	if payload == nil {
		return env, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	env.Payload = raw

	return env, nil
}

// DecodePayload unmarshals the envelope payload into dst.
func (e Envelope) DecodePayload(dst interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", e.Kind)
	}

	err := json.Unmarshal(e.Payload, dst)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}

	return nil
}

// Response is the uniform acknowledgement returned for every message.
type Response struct {
	Acknowledged bool   `json:"acknowledged"`
	Error        string `json:"error,omitempty"`
	Value        string `json:"value,omitempty"`
}

// Ack returns a positive response.
func Ack() Response {
	return Response{Acknowledged: true}
}

// AckValue returns a positive response carrying a value.
func AckValue(value string) Response {
	return Response{Acknowledged: true, Value: value}
}

// Nack returns a negative response with an error message.
func Nack(err error) Response {
	return Response{Acknowledged: false, Error: err.Error()}
}

// TaskComplete reports the outcome of one evaluation cycle.
type TaskComplete struct {
	Success bool      `json:"success"`
	Details string    `json:"details,omitempty"`
	Meta    *TaskMeta `json:"meta,omitempty"`
}

// TaskError reports a failure that prevented a cycle from producing a result.
type TaskError struct {
	Message string `json:"message"`
}

// BalanceUpdate pushes a freshly observed balance and/or token symbol.
type BalanceUpdate struct {
	CurrentBalance *float64 `json:"currentBalance,omitempty"`
	TokenSymbol    string   `json:"tokenSymbol,omitempty"`
}

// OrderHistorySnapshot summarizes the exchange's own order-history view for
// one day, used to reconcile the scheduler's daily aggregate.
type OrderHistorySnapshot struct {
	Date               string    `json:"date"`
	TotalBuyVolume     float64   `json:"totalBuyVolume"`
	BuyOrderCount      int       `json:"buyOrderCount"`
	AlphaPoints        int       `json:"alphaPoints"`
	NextThresholdDelta float64   `json:"nextThresholdDelta"`
	FetchedAt          time.Time `json:"fetchedAt"`
	Source             string    `json:"source"`
}

// ControlStart asks the scheduler to enable automation, optionally pinning a
// token address and a preferred tab.
type ControlStart struct {
	TokenAddress string `json:"tokenAddress,omitempty"`
	TabID        string `json:"tabId,omitempty"`
}
