package placer

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbencze/alpha-pilot/internal/page"
	"github.com/tbencze/alpha-pilot/internal/testutil"
	"go.uber.org/zap/zaptest"
)

type armRecorder struct {
	armed atomic.Int32
}

func (a *armRecorder) SetEnabled(enabled bool) {
	if enabled {
		a.armed.Add(1)
	}
}

// newTestPlacer wires a placer to a fake clock: sleeps complete instantly
// but advance the clock, so timeout paths run in real time zero.
func newTestPlacer(t *testing.T, fp *testutil.FakePage) (*Placer, *armRecorder, *time.Time) {
	t.Helper()

	tracker := &armRecorder{}
	p, err := New(&Config{
		Page:    fp,
		Tracker: tracker,
		Logger:  zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("new placer: %v", err)
	}

	now := time.Now()
	p.now = func() time.Time { return now }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return ctx.Err()
	}
	p.after = func(d time.Duration, fn func()) { fn() }
	p.randD = func(min, max time.Duration) time.Duration { return min }

	return p, tracker, &now
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)
	fp := testutil.NewFakePage()

	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{Logger: logger}); err == nil {
		t.Error("expected error for nil page")
	}
	if _, err := New(&Config{Page: fp}); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestEnsureLimitOrderPlaced_HappyPath(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	p, tracker, _ := newTestPlacer(t, fp)

	res, err := p.EnsureLimitOrderPlaced(context.Background(), 0.02, 0.05, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomePlaced {
		t.Fatalf("outcome = %v, want placed", res.Outcome)
	}
	if res.BuyVolume != 100 || res.AvailableBalanceBeforeOrder != 100 {
		t.Errorf("volume = %v / %v, want 100 / 100", res.BuyVolume, res.AvailableBalanceBeforeOrder)
	}

	// Prices carry exactly eight decimals.
	if fp.BuyPrice != "0.02001000" {
		t.Errorf("buy price = %q", fp.BuyPrice)
	}
	if fp.ReversePrice != "0.02002000" {
		t.Errorf("reverse price = %q", fp.ReversePrice)
	}
	if fp.AmountPercent != 100 {
		t.Errorf("amount percent = %d, want 100", fp.AmountPercent)
	}

	want := []string{
		"select-buy-limit",
		"set-buy-price",
		"toggle-reverse",
		"set-amount-100",
		"set-reverse-price",
		"click-buy",
		"click-confirmation",
	}
	got := fp.RecordedActions()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("actions = %v, want %v", got, want)
	}

	if tracker.armed.Load() != 1 {
		t.Errorf("monitor arm count = %d, want 1", tracker.armed.Load())
	}
}

func TestEnsureLimitOrderPlaced_ReverseAlreadyOn(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	fp.ReverseOn = true
	p, _, _ := newTestPlacer(t, fp)

	_, err := p.EnsureLimitOrderPlaced(context.Background(), 0.02, 0.05, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, action := range fp.RecordedActions() {
		if action == "toggle-reverse" {
			t.Fatal("toggled an already-enabled reverse order")
		}
	}
}

func TestEnsureLimitOrderPlaced_CooldownBlocksSecondAttempt(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	p, _, now := newTestPlacer(t, fp)
	ctx := context.Background()

	res, err := p.EnsureLimitOrderPlaced(ctx, 0.02, 0.05, 0.10)
	if err != nil || res.Outcome != OutcomePlaced {
		t.Fatalf("first attempt: res=%+v err=%v", res, err)
	}

	before := len(fp.RecordedActions())

	*now = now.Add(2 * time.Second)
	res, err = p.EnsureLimitOrderPlaced(ctx, 0.02, 0.05, 0.10)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if res.Outcome != OutcomeCooldown {
		t.Fatalf("outcome = %v, want cooldown", res.Outcome)
	}
	if got := len(fp.RecordedActions()); got != before {
		t.Errorf("cooldown attempt mutated the page: %v", fp.RecordedActions()[before:])
	}

	// Past the cooldown window a fresh placement goes through.
	*now = now.Add(6 * time.Second)
	res, err = p.EnsureLimitOrderPlaced(ctx, 0.02, 0.05, 0.10)
	if err != nil || res.Outcome != OutcomePlaced {
		t.Fatalf("post-cooldown attempt: res=%+v err=%v", res, err)
	}
}

func TestEnsureLimitOrderPlaced_ExistingOrdersSkip(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	fp.TabState = page.LimitOrdersNonEmpty
	p, _, _ := newTestPlacer(t, fp)

	res, err := p.EnsureLimitOrderPlaced(context.Background(), 0.02, 0.05, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %v, want skipped", res.Outcome)
	}
	if !strings.Contains(res.Reason, "existing orders") {
		t.Errorf("reason = %q", res.Reason)
	}
	if len(fp.RecordedActions()) != 0 {
		t.Errorf("skip mutated the page: %v", fp.RecordedActions())
	}
}

func TestEnsureLimitOrderPlaced_UnverifiableStateSkips(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	fp.TabState = page.LimitOrdersUnknown
	p, _, _ := newTestPlacer(t, fp)

	res, err := p.EnsureLimitOrderPlaced(context.Background(), 0.02, 0.05, 0.10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Fatalf("outcome = %v, want skipped", res.Outcome)
	}
	if !strings.Contains(res.Reason, "verify") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestEnsureLimitOrderPlaced_StructuralFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stage func(fp *testutil.FakePage)
	}{
		{name: "missing orders root", stage: func(fp *testutil.FakePage) {
			fp.OrdersRootPresent = false
		}},
		{name: "missing trading form", stage: func(fp *testutil.FakePage) {
			fp.FormPresent = false
		}},
		{name: "unreadable balance", stage: func(fp *testutil.FakePage) {
			fp.BalanceReadable = false
		}},
		{name: "zero balance", stage: func(fp *testutil.FakePage) {
			fp.Balance = 0
		}},
		{name: "confirmation never appears", stage: func(fp *testutil.FakePage) {
			fp.ConfirmReady = false
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fp := testutil.NewFakePage()
			tt.stage(fp)
			p, _, _ := newTestPlacer(t, fp)

			_, err := p.EnsureLimitOrderPlaced(context.Background(), 0.02, 0.05, 0.10)
			if err == nil {
				t.Fatal("expected a structural error")
			}
		})
	}
}

func TestEnsureLimitOrderPlaced_ContextCancelled(t *testing.T) {
	t.Parallel()

	fp := testutil.NewFakePage()
	p, _, _ := newTestPlacer(t, fp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.EnsureLimitOrderPlaced(ctx, 0.02, 0.05, 0.10)
	if err == nil {
		t.Fatal("expected context error")
	}
}
