package cache

import (
	"fmt"
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(capacity int, ttl time.Duration) (*Cache[string], *fakeClock) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New(Options[string]{Name: "test", Capacity: capacity, TTL: ttl, Now: clk.now})
	return c, clk
}

func TestCache_EvictsOldestInserted(t *testing.T) {
	c, _ := newTestCache(5, time.Minute)
	for i := 1; i <= 5; i++ {
		c.Put(fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i), 1)
	}

	// Reads do not change FIFO order.
	c.Get("k1")
	c.Put("k6", "v6", 1)

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should have been evicted")
	}
	for _, k := range []string{"k2", "k3", "k4", "k5", "k6"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be present", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCache_ReplaceKeepsPosition(t *testing.T) {
	c, _ := newTestCache(2, 0)
	c.Put("a", "1", 1)
	c.Put("b", "2", 1)
	c.Put("a", "3", 1)
	c.Put("c", "4", 1)

	if got := c.Keys(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Keys = %v, want [b c]", got)
	}
}

func TestCache_TTL(t *testing.T) {
	c, clk := newTestCache(5, 5*time.Minute)
	c.Put("k", "v", 10)

	clk.advance(4 * time.Minute)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get before TTL = (%q, %v), want (v, true)", v, ok)
	}

	clk.advance(time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Error("expired entry was served")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after expired read", c.Len())
	}

	s := c.Stats()
	if s.Expirations != 1 || s.Hits != 1 || s.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit, 1 miss, 1 expiration", s)
	}
	if s.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0", s.Bytes)
	}
}

func TestCache_PutRestartsTTL(t *testing.T) {
	c, clk := newTestCache(5, time.Minute)
	c.Put("k", "v1", 1)
	clk.advance(50 * time.Second)
	c.Put("k", "v2", 1)
	clk.advance(50 * time.Second)

	if v, ok := c.Get("k"); !ok || v != "v2" {
		t.Errorf("Get = (%q, %v), want (v2, true)", v, ok)
	}
}

func TestCache_PurgeExpired(t *testing.T) {
	c, clk := newTestCache(10, 30*time.Second)
	c.Put("old1", "x", 1)
	c.Put("old2", "x", 1)
	clk.advance(20 * time.Second)
	c.Put("new", "x", 1)
	clk.advance(15 * time.Second)

	if got := c.PurgeExpired(); got != 2 {
		t.Errorf("PurgeExpired = %d, want 2", got)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("Keys = %v, want [new]", got)
	}
}

func TestCache_RemoveIf(t *testing.T) {
	c, _ := newTestCache(10, 0)
	c.Put(DataKey("f1", "Sheet1"), "a", 1)
	c.Put(DataKey("f1", "Sheet2"), "b", 1)
	c.Put(DataKey("f2", "Sheet1"), "c", 1)

	if got := c.RemoveIf(HasPrefix(FilePrefix("f1"))); got != 2 {
		t.Errorf("RemoveIf = %d, want 2", got)
	}
	if _, ok := c.Get(DataKey("f2", "Sheet1")); !ok {
		t.Error("other file's entry was removed")
	}
}

func TestCache_SetCapacity(t *testing.T) {
	c, _ := newTestCache(20, 0)
	for i := 0; i < 20; i++ {
		c.Put(fmt.Sprint(i), "v", 1)
	}
	c.SetCapacity(10)

	if c.Len() != 10 {
		t.Fatalf("Len = %d, want 10", c.Len())
	}
	if keys := c.Keys(); keys[0] != "10" {
		t.Errorf("oldest remaining = %q, want %q", keys[0], "10")
	}
}

func TestCache_OnEvict(t *testing.T) {
	var evicted []string
	c := New(Options[int]{
		Capacity: 1,
		OnEvict:  func(k string, _ int) { evicted = append(evicted, k) },
	})
	c.Put("a", 1, 0)
	c.Put("b", 2, 0)
	c.Remove("b")

	if !reflect.DeepEqual(evicted, []string{"a", "b"}) {
		t.Errorf("evicted = %v, want [a b]", evicted)
	}
}

func TestRenderKey_IsolatesFiles(t *testing.T) {
	a := RenderKey("file-a", "Sheet1", 0, 500, 0)
	b := RenderKey("file-b", "Sheet1", 0, 500, 0)
	if a == b {
		t.Error("render keys of different files collide")
	}
	if !HasPrefix(SheetPrefix("file-a", "Sheet1"))(a) {
		t.Error("render key does not carry its sheet prefix")
	}
	if RenderKey("f", "S", 0, 500, 0) == RenderKey("f", "S", 0, 500, 2) {
		t.Error("frozen row count not part of the key")
	}
}
