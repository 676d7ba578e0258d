package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "cache_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	c, err := New(db, ttl)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestHashText(t *testing.T) {
	if HashText("hello") != HashText("hello") {
		t.Error("same input should produce same hash")
	}
	if HashText("hello") == HashText("Hello") {
		t.Error("different text should produce different hash")
	}
}

func TestPutAndGet(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	err := c.Put(ctx, "hi", models.CacheEntry{TargetLang: "fr", Provider: "p1", Translated: "salut", Confidence: 0.9})
	if err != nil {
		t.Fatal(err)
	}

	e, ok := c.Get(ctx, "fr", "hi")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if e.Translated != "salut" || e.Provider != "p1" || e.Confidence != 0.9 {
		t.Errorf("unexpected entry: %+v", e)
	}

	// Miss for different language
	if _, ok := c.Get(ctx, "de", "hi"); ok {
		t.Error("expected cache miss for different target language")
	}
}

func TestPutRequiresLanguage(t *testing.T) {
	c := newTestCache(t, time.Hour)
	if err := c.Put(context.Background(), "hi", models.CacheEntry{Translated: "x"}); err == nil {
		t.Error("expected error for empty target language")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t, 1*time.Millisecond)
	ctx := context.Background()

	if err := c.Put(ctx, "hi", models.CacheEntry{TargetLang: "fr", Translated: "salut"}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get(ctx, "fr", "hi"); ok {
		t.Error("expected cache miss after TTL expiration")
	}

	n, err := c.Clear(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("cleared = %d, want 1", n)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()

	_ = c.Put(ctx, "a", models.CacheEntry{TargetLang: "fr", Translated: "x"})
	_ = c.Put(ctx, "b", models.CacheEntry{TargetLang: "fr", Translated: "y"})

	c.Get(ctx, "fr", "a")
	c.Get(ctx, "fr", "missing")

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("entries = %d, want 2", stats.Entries)
	}
	if stats.Hits != 1 {
		t.Errorf("hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t, time.Hour)
	ctx := context.Background()
	_ = c.Put(ctx, "a", models.CacheEntry{TargetLang: "fr", Translated: "x"})

	if _, err := c.Clear(ctx, true); err != nil {
		t.Fatal(err)
	}
	stats, _ := c.Stats(ctx)
	if stats.Entries != 1 {
		t.Errorf("fresh entry should survive expired-only clear, entries = %d", stats.Entries)
	}

	if _, err := c.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}
	stats, _ = c.Stats(ctx)
	if stats.Entries != 0 {
		t.Errorf("entries = %d, want 0", stats.Entries)
	}
}
