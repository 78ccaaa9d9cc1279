package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap"
)

// Client is the page-agent side of the channel: it dials the hub, registers
// itself as a tab and pumps envelopes both ways. Once Close is called the
// client is terminal: Send fails with ErrChannelClosed forever, mirroring a
// torn-down page context.
type Client struct {
	cfg    ClientConfig
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *websocket.Conn
	handler Handler
	closed  bool

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan types.Response

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	URL            string
	TabID          string
	PageURL        string
	DialTimeout    time.Duration
	ReplyTimeout   time.Duration
	ReconnectDelay time.Duration
	Logger         *zap.Logger
}

// NewClient creates a disconnected client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 10 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.TabID == "" {
		cfg.TabID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		cfg:     cfg,
		logger:  cfg.Logger,
		pending: make(map[string]chan types.Response),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetHandler registers the handler for hub-initiated envelopes. Must be set
// before Start; an unset handler nacks with ErrReceiverNotReady.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Start dials the hub and keeps the connection alive until Close.
func (c *Client) Start() error {
	err := c.connect()
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	c.wg.Add(1)
	go c.runLoop()

	return nil
}

func (c *Client) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(c.ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	raw, err := json.Marshal(frame{Hello: &hello{
		TabID:  c.cfg.TabID,
		URL:    c.cfg.PageURL,
		Active: true,
	}})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal hello: %w", err)
	}

	err = conn.WriteMessage(websocket.TextMessage, raw)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("write hello: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("bus-client-connected",
		zap.String("tab-id", c.cfg.TabID),
		zap.String("url", c.cfg.URL))

	return nil
}

// runLoop reads frames and redials on failure until the client closes.
func (c *Client) runLoop() {
	defer c.wg.Done()

	for {
		c.readLoop()

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		err := c.connect()
		if err != nil {
			c.logger.Warn("bus-reconnect-failed", zap.Error(err))
		}
	}
}

func (c *Client) readLoop() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return
	}

	for {
		var f frame
		err := readFrame(conn, &f)
		if err != nil {
			if c.ctx.Err() == nil {
				c.logger.Warn("bus-read-error", zap.Error(err))
			}
			return
		}

		switch {
		case f.Response != nil:
			c.resolve(f.ID, *f.Response)

		case f.Envelope != nil:
			c.mu.RLock()
			handler := c.handler
			c.mu.RUnlock()

			var resp types.Response
			if handler == nil {
				resp = types.Nack(ErrReceiverNotReady)
			} else if !types.KnownKind(f.Envelope.Kind) {
				resp = types.Nack(fmt.Errorf("unknown message kind %q", f.Envelope.Kind))
			} else {
				resp = handler(context.Background(), *f.Envelope)
				MessagesReceivedTotal.WithLabelValues(string(f.Envelope.Kind)).Inc()
			}

			err = c.writeFrame(frame{ID: f.ID, Response: &resp})
			if err != nil {
				c.logger.Warn("bus-reply-failed", zap.Error(err))
				return
			}
		}
	}
}

// Send delivers an envelope to the hub and waits for the response.
func (c *Client) Send(ctx context.Context, env types.Envelope) (types.Response, error) {
	c.mu.RLock()
	closed := c.closed
	conn := c.conn
	c.mu.RUnlock()

	if closed {
		return types.Response{}, ErrChannelClosed
	}
	if conn == nil {
		return types.Response{}, ErrReceiverNotReady
	}

	id := uuid.NewString()
	ch := make(chan types.Response, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	err := c.writeFrame(frame{ID: id, Envelope: &env})
	if err != nil {
		return types.Response{}, fmt.Errorf("write envelope: %w", err)
	}

	timer := time.NewTimer(c.cfg.ReplyTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return types.Response{}, ctx.Err()
	case <-timer.C:
		return types.Response{}, fmt.Errorf("hub reply timeout for %s", env.Kind)
	case resp := <-ch:
		MessagesSentTotal.WithLabelValues(string(env.Kind)).Inc()
		return resp, nil
	}
}

func (c *Client) writeFrame(f frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrReceiverNotReady
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) resolve(id string, resp types.Response) {
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()

	if ok {
		ch <- resp
	}
}

// Close tears the client down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()

	c.logger.Info("bus-client-closed", zap.String("tab-id", c.cfg.TabID))
	return nil
}
