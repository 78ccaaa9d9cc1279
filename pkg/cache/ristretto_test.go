package cache

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(c.Close)

	return c.(*RistrettoCache)
}

func TestNewRistrettoCache_Validation(t *testing.T) {
	if _, err := NewRistrettoCache(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewRistrettoCache(&RistrettoConfig{NumCounters: 10, MaxCost: 10, BufferItems: 64}); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestRistrettoCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set(KeyTokenSymbol, "ZRO", time.Hour) {
		t.Fatal("expected Set to admit")
	}
	c.Wait()

	got, found := c.Get(KeyTokenSymbol)
	if !found {
		t.Fatal("expected key to be found")
	}
	if got != "ZRO" {
		t.Errorf("value = %v, want ZRO", got)
	}

	if _, found := c.Get("nonexistent"); found {
		t.Error("expected miss for unknown key")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", time.Hour)
	c.Wait()
	c.Delete("k")

	if _, found := c.Get("k"); found {
		t.Error("expected key to be deleted")
	}
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("short", "v", 100*time.Millisecond)
	c.Wait()

	time.Sleep(250 * time.Millisecond)

	if _, found := c.Get("short"); found {
		t.Error("expected key to expire")
	}
}

func TestRistrettoCache_Clear(t *testing.T) {
	c := newTestCache(t)

	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	c.Wait()

	c.Clear()

	_, foundA := c.Get("a")
	_, foundB := c.Get("b")
	if foundA || foundB {
		t.Error("expected cache to be empty after Clear")
	}
}
