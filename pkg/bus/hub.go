package bus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap"
)

// Hub is the background-process side of the channel. Every connected page
// agent is tracked as a tab; the hub implements TabGateway for the scheduler
// and forwards agent-initiated envelopes to its own handler.
type Hub struct {
	logger       *zap.Logger
	upgrader     websocket.Upgrader
	replyTimeout time.Duration

	mu      sync.RWMutex
	handler Handler
	conns   map[string]*hubConn
}

// HubConfig holds hub configuration.
type HubConfig struct {
	ReplyTimeout time.Duration
	Logger       *zap.Logger
}

type hubConn struct {
	id     string
	url    string
	active bool

	writeMu sync.Mutex
	conn    *websocket.Conn

	pendingMu sync.Mutex
	pending   map[string]chan types.Response
}

// NewHub creates a hub with no connected tabs.
func NewHub(cfg HubConfig) *Hub {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 10 * time.Second
	}

	return &Hub{
		logger:       cfg.Logger,
		replyTimeout: cfg.ReplyTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*hubConn),
	}
}

// SetHandler registers the handler for agent-initiated envelopes.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// HandleWS upgrades an HTTP request into a page-agent connection. Mount on
// the shared router, e.g. r.Get("/ws", hub.HandleWS).
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws-upgrade-failed", zap.Error(err))
		return
	}

	// The first frame must be a hello.
	var first frame
	err = readFrame(conn, &first)
	if err != nil || first.Hello == nil {
		h.logger.Warn("ws-hello-missing", zap.Error(err))
		_ = conn.Close()
		return
	}

	id := first.Hello.TabID
	if id == "" {
		id = uuid.NewString()
	}

	hc := &hubConn{
		id:      id,
		url:     first.Hello.URL,
		active:  first.Hello.Active,
		conn:    conn,
		pending: make(map[string]chan types.Response),
	}

	h.mu.Lock()
	h.conns[id] = hc
	total := len(h.conns)
	h.mu.Unlock()

	ConnectedTabs.Set(float64(total))
	h.logger.Info("tab-connected",
		zap.String("tab-id", id),
		zap.String("url", hc.url),
		zap.Int("total", total))

	h.readLoop(hc)

	h.mu.Lock()
	delete(h.conns, id)
	total = len(h.conns)
	h.mu.Unlock()

	ConnectedTabs.Set(float64(total))
	_ = conn.Close()
	h.logger.Info("tab-disconnected", zap.String("tab-id", id), zap.Int("total", total))
}

// readLoop pumps frames from one agent connection until it fails.
func (h *Hub) readLoop(hc *hubConn) {
	for {
		var f frame
		err := readFrame(hc.conn, &f)
		if err != nil {
			h.logger.Debug("tab-read-error", zap.String("tab-id", hc.id), zap.Error(err))
			return
		}

		switch {
		case f.Response != nil:
			hc.resolve(f.ID, *f.Response)

		case f.Envelope != nil:
			h.mu.RLock()
			handler := h.handler
			h.mu.RUnlock()

			var resp types.Response
			if handler == nil {
				resp = types.Nack(ErrReceiverNotReady)
			} else if !types.KnownKind(f.Envelope.Kind) {
				resp = types.Nack(fmt.Errorf("unknown message kind %q", f.Envelope.Kind))
			} else {
				resp = handler(context.Background(), *f.Envelope)
				MessagesReceivedTotal.WithLabelValues(string(f.Envelope.Kind)).Inc()
			}

			err = hc.writeFrame(frame{ID: f.ID, Response: &resp})
			if err != nil {
				h.logger.Warn("tab-reply-failed", zap.String("tab-id", hc.id), zap.Error(err))
				return
			}

		default:
			h.logger.Debug("tab-empty-frame", zap.String("tab-id", hc.id))
		}
	}
}

// QueryTabs lists the connected tabs.
func (h *Hub) QueryTabs(ctx context.Context) ([]types.TabInfo, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tabs := make([]types.TabInfo, 0, len(h.conns))
	for _, hc := range h.conns {
		tabs = append(tabs, types.TabInfo{ID: hc.id, URL: hc.url, Active: hc.active})
	}
	return tabs, nil
}

// SendToTab delivers an envelope to one connected tab and waits for the
// agent's response.
func (h *Hub) SendToTab(ctx context.Context, tabID string, env types.Envelope) (types.Response, error) {
	h.mu.RLock()
	hc, ok := h.conns[tabID]
	h.mu.RUnlock()

	if !ok {
		return types.Response{}, fmt.Errorf("tab %s: %w", tabID, ErrTabGone)
	}

	id := uuid.NewString()
	ch := make(chan types.Response, 1)
	hc.addPending(id, ch)
	defer hc.removePending(id)

	err := hc.writeFrame(frame{ID: id, Envelope: &env})
	if err != nil {
		return types.Response{}, fmt.Errorf("write to tab %s: %w", tabID, ErrReceiverNotReady)
	}

	timer := time.NewTimer(h.replyTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return types.Response{}, ctx.Err()
	case <-timer.C:
		return types.Response{}, fmt.Errorf("tab %s reply timeout: %w", tabID, ErrReceiverNotReady)
	case resp := <-ch:
		MessagesSentTotal.WithLabelValues(string(env.Kind)).Inc()
		return resp, nil
	}
}

func (hc *hubConn) writeFrame(f frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}

	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()
	return hc.conn.WriteMessage(websocket.TextMessage, raw)
}

func (hc *hubConn) addPending(id string, ch chan types.Response) {
	hc.pendingMu.Lock()
	hc.pending[id] = ch
	hc.pendingMu.Unlock()
}

func (hc *hubConn) removePending(id string) {
	hc.pendingMu.Lock()
	delete(hc.pending, id)
	hc.pendingMu.Unlock()
}

func (hc *hubConn) resolve(id string, resp types.Response) {
	hc.pendingMu.Lock()
	ch, ok := hc.pending[id]
	hc.pendingMu.Unlock()

	if ok {
		ch <- resp
	}
}

func readFrame(conn *websocket.Conn, f *frame) error {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, f)
}
