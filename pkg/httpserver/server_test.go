package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"github.com/tbencze/alpha-pilot/internal/state"
	"github.com/tbencze/alpha-pilot/internal/storage"
	"github.com/tbencze/alpha-pilot/pkg/bus"
	"github.com/tbencze/alpha-pilot/pkg/healthprobe"
	"github.com/tbencze/alpha-pilot/pkg/types"
)

type recordedControl struct {
	envelopes []types.Envelope
	response  types.Response
}

func (r *recordedControl) handle(ctx context.Context, env types.Envelope) types.Response {
	r.envelopes = append(r.envelopes, env)
	return r.response
}

func newTestServer(t *testing.T, control *recordedControl) (*httptest.Server, storage.Store) {
	t.Helper()

	store := storage.NewMemoryStore(zaptest.NewLogger(t))
	srv := New(&Config{
		Port:          "0",
		Logger:        zaptest.NewLogger(t),
		HealthChecker: healthprobe.New(),
		Store:         store,
		Control:       bus.Handler(control.handle),
	})

	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = store.Close() })
	return ts, store
}

func TestServer_Status(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Ack()}
	ts, store := newTestServer(t, control)

	_, err := store.Update(context.Background(), func(st *state.SchedulerState) {
		st.IsEnabled = true
		st.TokenSymbol = "ZRO"
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var st state.SchedulerState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.IsEnabled || st.TokenSymbol != "ZRO" {
		t.Errorf("state = %+v, want enabled with symbol ZRO", st)
	}
}

func TestServer_ControlStart(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Ack()}
	ts, _ := newTestServer(t, control)

	body := strings.NewReader(`{"tokenAddress":"0xabcdef0123456789abcdef0123456789abcdef01","tabId":"tab-1"}`)
	resp, err := http.Post(ts.URL+"/api/control/start", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(control.envelopes) != 1 {
		t.Fatalf("control received %d envelopes, want 1", len(control.envelopes))
	}

	env := control.envelopes[0]
	if env.Kind != types.KindControlStart {
		t.Errorf("kind = %s, want CONTROL_START", env.Kind)
	}

	var payload types.ControlStart
	if err := env.DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.TokenAddress != "0xabcdef0123456789abcdef0123456789abcdef01" || payload.TabID != "tab-1" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestServer_ControlStartEmptyBody(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Ack()}
	ts, _ := newTestServer(t, control)

	resp, err := http.Post(ts.URL+"/api/control/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(control.envelopes) != 1 {
		t.Fatalf("control received %d envelopes, want 1", len(control.envelopes))
	}
	if len(control.envelopes[0].Payload) != 0 {
		t.Errorf("payload = %s, want empty", control.envelopes[0].Payload)
	}
}

func TestServer_ControlStartMalformedBody(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Ack()}
	ts, _ := newTestServer(t, control)

	resp, err := http.Post(ts.URL+"/api/control/start", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(control.envelopes) != 0 {
		t.Errorf("control received %d envelopes, want 0", len(control.envelopes))
	}
}

func TestServer_ControlStopRejected(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Nack(context.DeadlineExceeded)}
	ts, _ := newTestServer(t, control)

	resp, err := http.Post(ts.URL+"/api/control/stop", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var out types.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Acknowledged || out.Error == "" {
		t.Errorf("response = %+v, want nack with error", out)
	}
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	control := &recordedControl{response: types.Ack()}
	ts, _ := newTestServer(t, control)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}
