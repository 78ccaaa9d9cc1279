package bus

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbencze/alpha-pilot/pkg/types"
	"go.uber.org/zap/zaptest"
)

func TestEndpoint_SendBeforeHandlerIsNotReady(t *testing.T) {
	t.Parallel()

	a, _ := NewPair()
	_, err := a.Send(context.Background(), types.Envelope{Kind: types.KindRunTask})
	if !errors.Is(err, ErrReceiverNotReady) {
		t.Errorf("got %v, want ErrReceiverNotReady", err)
	}
}

func TestEndpoint_RoundTrip(t *testing.T) {
	t.Parallel()

	a, b := NewPair()
	b.SetHandler(func(ctx context.Context, env types.Envelope) types.Response {
		if env.Kind != types.KindRequestTokenSymbol {
			t.Errorf("unexpected kind %s", env.Kind)
		}
		return types.AckValue("ZRO")
	})

	resp, err := a.Send(context.Background(), types.Envelope{Kind: types.KindRequestTokenSymbol})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !resp.Acknowledged || resp.Value != "ZRO" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestEndpoint_ClosedIsTerminal(t *testing.T) {
	t.Parallel()

	a, b := NewPair()
	b.SetHandler(func(ctx context.Context, env types.Envelope) types.Response { return types.Ack() })
	b.Close()

	_, err := a.Send(context.Background(), types.Envelope{Kind: types.KindRunTask})
	if !errors.Is(err, ErrChannelClosed) {
		t.Errorf("got %v, want ErrChannelClosed", err)
	}
}

func TestLocalTabGateway(t *testing.T) {
	t.Parallel()

	a, b := NewPair()
	b.SetHandler(func(ctx context.Context, env types.Envelope) types.Response { return types.Ack() })

	tab := types.TabInfo{ID: "local", URL: "https://example.com/alpha/0xabc", Active: true}
	gw := NewLocalTabGateway(tab, a)

	tabs, err := gw.QueryTabs(context.Background())
	if err != nil || len(tabs) != 1 || tabs[0].ID != "local" {
		t.Fatalf("tabs = %v, err = %v", tabs, err)
	}

	_, err = gw.SendToTab(context.Background(), "local", types.Envelope{Kind: types.KindRunTask})
	if err != nil {
		t.Errorf("send to known tab: %v", err)
	}

	_, err = gw.SendToTab(context.Background(), "ghost", types.Envelope{Kind: types.KindRunTask})
	if !errors.Is(err, ErrTabGone) {
		t.Errorf("got %v, want ErrTabGone", err)
	}
}

func TestHubClient_RoundTrip(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	hub := NewHub(HubConfig{ReplyTimeout: 2 * time.Second, Logger: logger})

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	client := NewClient(ClientConfig{
		URL:          wsURL,
		TabID:        "tab-1",
		PageURL:      "https://example.com/alpha/0xabc",
		ReplyTimeout: 2 * time.Second,
		Logger:       logger,
	})
	client.SetHandler(func(ctx context.Context, env types.Envelope) types.Response {
		return types.AckValue("pong")
	})

	if err := client.Start(); err != nil {
		t.Fatalf("start client: %v", err)
	}
	defer client.Close()

	// Wait for the hub to register the tab.
	deadline := time.Now().Add(2 * time.Second)
	for {
		tabs, _ := hub.QueryTabs(context.Background())
		if len(tabs) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("tab never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Hub -> client.
	resp, err := hub.SendToTab(context.Background(), "tab-1", types.Envelope{Kind: types.KindRunTask})
	if err != nil {
		t.Fatalf("send to tab: %v", err)
	}
	if resp.Value != "pong" {
		t.Errorf("resp = %+v", resp)
	}

	// Client -> hub.
	hub.SetHandler(func(ctx context.Context, env types.Envelope) types.Response {
		if env.Kind != types.KindTaskComplete {
			t.Errorf("unexpected kind %s", env.Kind)
		}
		return types.Ack()
	})

	env, err := types.NewEnvelope(types.KindTaskComplete, types.TaskComplete{Success: true})
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	resp, err = client.Send(context.Background(), env)
	if err != nil {
		t.Fatalf("client send: %v", err)
	}
	if !resp.Acknowledged {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHub_SendToMissingTab(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{Logger: zaptest.NewLogger(t)})
	_, err := hub.SendToTab(context.Background(), "nope", types.Envelope{Kind: types.KindRunTask})
	if !errors.Is(err, ErrTabGone) {
		t.Errorf("got %v, want ErrTabGone", err)
	}
}

func TestClient_SendAfterCloseIsTerminal(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	hub := NewHub(HubConfig{Logger: logger})
	server := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer server.Close()

	client := NewClient(ClientConfig{
		URL:     "ws" + strings.TrimPrefix(server.URL, "http"),
		PageURL: "https://example.com",
		Logger:  logger,
	})
	if err := client.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = client.Close()

	_, err := client.Send(context.Background(), types.Envelope{Kind: types.KindRunTask})
	if !errors.Is(err, ErrChannelClosed) {
		t.Errorf("got %v, want ErrChannelClosed", err)
	}
}
