package app

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/pkg/config"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

const testTokenAddress = "0xabcdef0123456789abcdef0123456789abcdef01"

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{
		LogLevel:        "debug",
		HTTPPort:        "0",
		RunMode:         "sim",
		IntervalMode:    "fast",
		TokenAddress:    testTokenAddress,
		OrderCooldown:   5 * time.Second,
		WakeInterval:    time.Minute,
		StorageMode:     "memory",
		SimTokenSymbol:  "SIM",
		SimStartBalance: 1000,
		SimStartPrice:   0.02,
		SimFillDelayMin: 100 * time.Millisecond,
		SimFillDelayMax: 300 * time.Millisecond,
	}

	a, err := New(cfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestApp_SimModeWiring(t *testing.T) {
	a := newTestApp(t)

	if a.hub != nil {
		t.Error("hub should not exist in sim mode")
	}
	if a.engine == nil || a.simPage == nil || a.orderMon == nil {
		t.Fatal("sim side not wired")
	}
	if a.scheduler == nil || a.httpServer == nil {
		t.Fatal("scheduler side not wired")
	}
}

func TestApp_HubModeWiring(t *testing.T) {
	cfg := &config.Config{
		LogLevel:     "debug",
		HTTPPort:     "0",
		RunMode:      "hub",
		IntervalMode: "medium",
		WakeInterval: time.Minute,
		StorageMode:  "memory",
	}

	a, err := New(cfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })

	if a.hub == nil {
		t.Fatal("hub missing in hub mode")
	}
	if a.engine != nil || a.simPage != nil {
		t.Error("sim side should not exist in hub mode")
	}
}

// A login-gated cycle never stamps LastRun; run-once must still return as
// soon as the gate is reported instead of waiting out its full deadline.
func TestApp_RunOnceReturnsOnLoginGate(t *testing.T) {
	a := newTestApp(t)
	a.simPage.SetLoginGate(true)

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	start := time.Now()
	st, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !st.RequiresLogin {
		t.Error("RequiresLogin not reported")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("run-once took %v, want prompt return on login gate", elapsed)
	}
}

func TestNewAgent_RequiresHubURL(t *testing.T) {
	cfg := &config.Config{
		LogLevel:     "debug",
		IntervalMode: "fast",
		StorageMode:  "memory",
	}

	_, err := NewAgent(cfg, zaptest.NewLogger(t), nil)
	if err == nil {
		t.Fatal("expected error for empty hub url")
	}
}

// TestApp_HubAgentEndToEnd runs the two production halves as separate
// instances: a hub app serving /ws and a standalone agent dialed into it
// over a real websocket. The hub's scheduler drives the agent through a
// full cycle and collects the result into its own store.
func TestApp_HubAgentEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("slow: real websocket round trips and pacing delays")
	}

	hubCfg := &config.Config{
		LogLevel:        "debug",
		HTTPPort:        "0",
		RunMode:         "hub",
		IntervalMode:    "fast",
		WakeInterval:    time.Minute,
		StorageMode:     "memory",
		BusReplyTimeout: 10 * time.Second,
	}
	hub, err := New(hubCfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("new hub app: %v", err)
	}
	t.Cleanup(func() { _ = hub.Shutdown() })

	ts := httptest.NewServer(hub.httpServer.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	agentCfg := &config.Config{
		LogLevel:          "debug",
		IntervalMode:      "fast",
		TokenAddress:      testTokenAddress,
		OrderCooldown:     5 * time.Second,
		StorageMode:       "memory",
		SimTokenSymbol:    "SIM",
		SimStartBalance:   1000,
		SimStartPrice:     0.02,
		SimFillDelayMin:   100 * time.Millisecond,
		SimFillDelayMax:   300 * time.Millisecond,
		HubURL:            wsURL,
		BusDialTimeout:    5 * time.Second,
		BusReplyTimeout:   10 * time.Second,
		BusReconnectDelay: 200 * time.Millisecond,
	}
	agent, err := NewAgent(agentCfg, zaptest.NewLogger(t), nil)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	if err := agent.Start(); err != nil {
		t.Fatalf("start agent: %v", err)
	}
	t.Cleanup(func() { _ = agent.Shutdown() })

	ctx := context.Background()

	// The hub registers the tab once the agent's hello arrives.
	registered := time.Now().Add(5 * time.Second)
	for {
		tabs, err := hub.hub.QueryTabs(ctx)
		if err != nil {
			t.Fatalf("query tabs: %v", err)
		}
		if len(tabs) == 1 {
			break
		}
		if time.Now().After(registered) {
			t.Fatalf("agent tab never registered, tabs: %v", tabs)
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := hub.scheduler.Start(hub.ctx); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}

	env, err := types.NewEnvelope(types.KindControlStart, types.ControlStart{
		TokenAddress: testTokenAddress,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := hub.scheduler.HandleMessage(ctx, env)
	if !resp.Acknowledged {
		t.Fatalf("control start rejected: %s", resp.Error)
	}

	deadline := time.Now().Add(25 * time.Second)
	var st *state.SchedulerState
	for time.Now().Before(deadline) {
		st, err = hub.store.Get(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.DailyBuyVolume != nil && st.DailyBuyVolume.TradeCount > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if st.DailyBuyVolume == nil || st.DailyBuyVolume.TradeCount == 0 {
		t.Fatalf("no trade reached the hub before deadline, state: %+v", st)
	}
	if st.TokenSymbol != "SIM" {
		t.Errorf("token symbol = %q, want SIM", st.TokenSymbol)
	}

	stopEnv, err := types.NewEnvelope(types.KindControlStop, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp = hub.scheduler.HandleMessage(ctx, stopEnv)
	if !resp.Acknowledged {
		t.Fatalf("control stop rejected: %s", resp.Error)
	}

	// The stop is forwarded to the connected tab before the ack returns.
	if agent.engine.Enabled() {
		t.Error("agent engine still enabled after control stop")
	}
}

// TestApp_EndToEndCycle drives a full automation round trip through the
// in-process bus: control start, scheduler wake, engine evaluation, order
// placement on the simulated page, and the task report folding back into
// the persisted daily aggregate.
func TestApp_EndToEndCycle(t *testing.T) {
	if testing.Short() {
		t.Skip("slow: runs real pacing delays")
	}

	a := newTestApp(t)
	ctx := context.Background()

	a.orderMon.Start()
	if err := a.scheduler.Start(a.ctx); err != nil {
		t.Fatalf("start scheduler: %v", err)
	}

	env, err := types.NewEnvelope(types.KindControlStart, types.ControlStart{
		TokenAddress: testTokenAddress,
	})
	if err != nil {
		t.Fatal(err)
	}
	resp := a.scheduler.HandleMessage(ctx, env)
	if !resp.Acknowledged {
		t.Fatalf("control start rejected: %s", resp.Error)
	}

	// One cycle includes human-paced form interaction; give it room.
	deadline := time.Now().Add(25 * time.Second)
	var st *state.SchedulerState
	for time.Now().Before(deadline) {
		st, err = a.store.Get(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.DailyBuyVolume != nil && st.DailyBuyVolume.TradeCount > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	if st.DailyBuyVolume == nil || st.DailyBuyVolume.TradeCount == 0 {
		t.Fatalf("no trade recorded before deadline, state: %+v", st)
	}
	if st.DailyBuyVolume.Total <= 0 {
		t.Errorf("daily volume = %v, want > 0", st.DailyBuyVolume.Total)
	}
	if st.LastRun == "" {
		t.Error("last run never stamped")
	}
	if st.TokenSymbol != "SIM" {
		t.Errorf("token symbol = %q, want SIM", st.TokenSymbol)
	}

	stopEnv, err := types.NewEnvelope(types.KindControlStop, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp = a.scheduler.HandleMessage(ctx, stopEnv)
	if !resp.Acknowledged {
		t.Fatalf("control stop rejected: %s", resp.Error)
	}

	st, err = a.store.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.IsEnabled {
		t.Error("still enabled after control stop")
	}
}
