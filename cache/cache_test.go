package cache

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"health:/Health:abc", nil},
		{"", ErrInvalidKey},
		{"   ", ErrInvalidKey},
		{"a\nb", ErrInvalidKey},
		{"a\x00b", ErrInvalidKey},
		{strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
	}
	for _, tt := range tests {
		if err := ValidateKey(tt.key); !errors.Is(err, tt.want) {
			t.Errorf("ValidateKey(%.20q) = %v, want %v", tt.key, err, tt.want)
		}
	}
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get on empty cache should miss")
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get(ctx, "k")
	if !ok || !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get() = (%q, %v), want (v, true)", got, ok)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete on missing key error = %v", err)
	}
}

func TestMemoryCache_ZeroTTLStoresNothing(t *testing.T) {
	c := NewMemoryCache()
	_ = c.Set(context.Background(), "k", []byte("v"), 0)
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Second)
	now = now.Add(999 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("entry survived its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not evicted, Len() = %d", c.Len())
	}
}

func TestPolicy_EffectiveTTL(t *testing.T) {
	p := Policy{DefaultTTL: 5 * time.Second, MaxTTL: time.Minute}
	tests := []struct {
		override time.Duration
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{-1, 5 * time.Second},
		{10 * time.Second, 10 * time.Second},
		{time.Hour, time.Minute},
	}
	for _, tt := range tests {
		if got := p.EffectiveTTL(tt.override); got != tt.want {
			t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.want)
		}
	}
	if NoCachePolicy().ShouldCache() {
		t.Error("NoCachePolicy should not cache")
	}
	if !DefaultPolicy().ShouldCache() {
		t.Error("DefaultPolicy should cache")
	}
}

func TestRequestKeyer_Deterministic(t *testing.T) {
	k := NewRequestKeyer("")
	a, err := k.Key("/Health", url.Values{"b": {"2"}, "a": {"1"}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, _ := k.Key("/Health", url.Values{"a": {"1"}, "b": {"2"}})
	if a != b {
		t.Errorf("keys differ for reordered query: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "health:/Health:") {
		t.Errorf("key = %q, want health:/Health: prefix", a)
	}
	c, _ := k.Key("/Health", url.Values{"a": {"3"}})
	if c == a {
		t.Error("different query produced the same key")
	}
	if _, err := k.Key("", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Key(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestLoader_CoalescesConcurrentMisses(t *testing.T) {
	l := NewLoader(NewMemoryCache(), Policy{DefaultTTL: time.Minute})
	var calls atomic.Int32
	load := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return []byte("report"), nil
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			v, _, err := l.Load(context.Background(), "k", 0, load)
			if err != nil || string(v) != "report" {
				t.Errorf("Load() = (%q, %v)", v, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
	if _, hit, _ := l.Load(context.Background(), "k", 0, load); !hit {
		t.Error("expected a cache hit after the first load")
	}
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	l := NewLoader(nil, Policy{DefaultTTL: time.Minute})
	boom := errors.New("encode failed")
	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []byte("ok"), nil
	}

	if _, _, err := l.Load(context.Background(), "k", 0, load); !errors.Is(err, boom) {
		t.Fatalf("Load() error = %v, want %v", err, boom)
	}
	v, hit, err := l.Load(context.Background(), "k", 0, load)
	if err != nil || hit || string(v) != "ok" {
		t.Fatalf("Load() = (%q, %v, %v), want (ok, false, nil)", v, hit, err)
	}
}

func TestLoader_NoTTLBypassesCache(t *testing.T) {
	l := NewLoader(nil, NoCachePolicy())
	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}
	for range 3 {
		_, _, _ = l.Load(context.Background(), "k", 0, load)
	}
	if calls != 3 {
		t.Errorf("load called %d times, want 3", calls)
	}
}

func TestLoader_Invalidate(t *testing.T) {
	l := NewLoader(nil, Policy{DefaultTTL: time.Minute})
	calls := 0
	load := func(ctx context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}
	ctx := context.Background()
	_, _, _ = l.Load(ctx, "k", 0, load)
	_ = l.Invalidate(ctx, "k")
	_, _, _ = l.Load(ctx, "k", 0, load)
	if calls != 2 {
		t.Errorf("load called %d times, want 2", calls)
	}
}
