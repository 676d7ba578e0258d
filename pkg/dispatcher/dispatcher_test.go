package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/lingoroute/lingoroute/pkg/cache/sqlite"
	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/provider"
	"github.com/lingoroute/lingoroute/pkg/sqlitedb"
	"github.com/lingoroute/lingoroute/pkg/stats"
)

type fakeAdapter struct {
	name       string
	confidence float64
	err        error
	delay      time.Duration
	onCall     func()

	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Translate(ctx context.Context, in provider.Input) (provider.Output, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.onCall != nil {
		f.onCall()
	}
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return provider.Output{}, &provider.Error{Provider: f.name, Kind: provider.KindTimeout, Err: ctx.Err()}
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return provider.Output{}, f.err
	}
	return provider.Output{Text: f.name + ":" + in.Text, Confidence: f.confidence, FinishReason: "stop"}, nil
}

type fakeAdapters map[string]*fakeAdapter

func (f fakeAdapters) Get(cfg models.ProviderConfig) (provider.Adapter, error) {
	a, ok := f[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("no adapter %s", cfg.Name)
	}
	return a, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (m *memAudit) Log(_ context.Context, e models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func cfg(name string, priority int, threshold, costPerChar float64) models.ProviderConfig {
	return models.ProviderConfig{
		Name:             name,
		Enabled:          true,
		Priority:         priority,
		QualityThreshold: threshold,
		CostPerChar:      costPerChar,
		Credentials:      []string{"k"},
	}
}

func networkErr(name string) error {
	return &provider.Error{Provider: name, Kind: provider.KindNetwork, Err: errors.New("connection refused")}
}

type harness struct {
	d      *Dispatcher
	store  *configstore.Store
	ledger *ledger.Ledger
	stats  *stats.Collector
	audit  *memAudit
}

func newHarness(t *testing.T, providers []models.ProviderConfig, adapters fakeAdapters, mutate func(*Config)) *harness {
	t.Helper()
	store, err := configstore.Open(context.Background(), nil, providers, nil)
	require.NoError(t, err)
	l, err := ledger.New(nil, time.UTC, nil)
	require.NoError(t, err)

	h := &harness{store: store, ledger: l, stats: stats.New(nil), audit: &memAudit{}}
	c := Config{
		Store:          store,
		Adapters:       adapters,
		Ledger:         l,
		Stats:          h.stats,
		Audit:          h.audit,
		Workers:        4,
		DefaultTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&c)
	}
	h.d = New(c)
	return h
}

func (h *harness) spent(name string) float64 {
	return h.ledger.UsageRate(name, models.Budget{}).SpentToday
}

func outcomes(res models.TranslationResult) []string {
	var out []string
	for _, a := range res.Attempts {
		out = append(out, a.Provider+"="+string(a.Outcome))
	}
	return out
}

func TestInvalidRequest(t *testing.T) {
	h := newHarness(t, nil, fakeAdapters{}, nil)
	ctx := context.Background()

	for _, req := range []models.TranslationRequest{
		{Text: "", TargetLang: "fr"},
		{Text: "   ", TargetLang: "fr"},
		{Text: "hi", TargetLang: ""},
		{Text: "hi", TargetLang: "fr", Timeout: -time.Second},
	} {
		_, err := h.d.Translate(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %+v", req)
	}
}

func TestPriorityOrderWithTies(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}
	adapters := fakeAdapters{}
	for _, n := range []string{"c", "a", "b", "d"} {
		adapters[n] = &fakeAdapter{name: n, err: networkErr(n), onCall: record(n)}
	}
	h := newHarness(t, []models.ProviderConfig{
		cfg("c", 3, 0.5, 0),
		cfg("a", 1, 0.5, 0),
		cfg("b", 1, 0.5, 0),
		cfg("d", 2, 0.5, 0),
	}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"a", "b", "d", "c"}, order)
	assert.Equal(t, []string{"a=failed", "b=failed", "d=failed", "c=failed"}, outcomes(res))
}

func TestLowConfidenceFallsThrough(t *testing.T) {
	adapters := fakeAdapters{
		"a": {name: "a", confidence: 0.5},
		"b": {name: "b", confidence: 0.9},
	}
	h := newHarness(t, []models.ProviderConfig{
		cfg("a", 1, 0.8, 0.01),
		cfg("b", 2, 0.8, 0.02),
	}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)

	assert.False(t, res.Degraded)
	assert.Equal(t, "b", res.ProviderName)
	assert.Equal(t, "b:hello", res.TranslatedText)
	assert.Equal(t, 0.9, res.ConfidenceScore)
	assert.Equal(t, []string{"a=rejected", "b=accepted"}, outcomes(res))

	// rejected attempts cost nothing by default
	assert.Equal(t, 0.0, h.spent("a"))
	assert.InDelta(t, 0.1, h.spent("b"), 1e-12)
	assert.InDelta(t, 0.1, res.Cost, 1e-12)
}

func TestThresholdIsInclusive(t *testing.T) {
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.8, 0)}, fakeAdapters{"a": {name: "a", confidence: 0.8}}, nil)
	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "x", TargetLang: "de"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.ProviderName)
}

func TestLedgerChargesExactlyCharsTimesCost(t *testing.T) {
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0.25)}, fakeAdapters{"a": {name: "a", confidence: 1}}, nil)
	ctx := context.Background()

	// runes, not bytes
	_, err := h.d.Translate(ctx, models.TranslationRequest{Text: "héllo", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, 1.25, h.spent("a"))

	_, err = h.d.Translate(ctx, models.TranslationRequest{Text: "日本語", TargetLang: "en"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, h.spent("a"))
	assert.Equal(t, 2.0, h.ledger.UsageRate("a", models.Budget{}).SpentThisMonth)
}

func TestOverBudgetProviderIsSkipped(t *testing.T) {
	a := cfg("a", 1, 0.5, 1)
	a.DailyBudget = models.Limit(10)
	adapters := fakeAdapters{
		"a": {name: "a", confidence: 1},
		"b": {name: "b", confidence: 0.9},
	}
	h := newHarness(t, []models.ProviderConfig{a, cfg("b", 2, 0.8, 0.5)}, adapters, nil)
	require.NoError(t, h.ledger.Record(context.Background(), "a", 8))

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)

	assert.Equal(t, "b", res.ProviderName)
	assert.Equal(t, int32(0), adapters["a"].calls.Load())
	assert.Equal(t, 8.0, h.spent("a"))
	assert.Equal(t, 2.5, h.spent("b"))
	assert.Equal(t, []string{"a=skipped", "b=accepted"}, outcomes(res))
	assert.Equal(t, kindBudget, res.Attempts[0].ErrorKind)
}

func TestZeroBudgetProviderIsSkipped(t *testing.T) {
	a := cfg("a", 1, 0.5, 1)
	a.DailyBudget = models.Limit(0)
	free := cfg("free", 2, 0.5, 0)
	free.DailyBudget = models.Limit(0)
	adapters := fakeAdapters{
		"a":    {name: "a", confidence: 1},
		"free": {name: "free", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{a, free}, adapters, nil)

	for range 3 {
		res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
		require.NoError(t, err)
		assert.Equal(t, "free", res.ProviderName)
		assert.Equal(t, []string{"a=skipped", "free=accepted"}, outcomes(res))
	}
	assert.Equal(t, int32(0), adapters["a"].calls.Load())
	assert.Equal(t, 0.0, h.spent("a"))
}

func TestAllRejectedIsDegraded(t *testing.T) {
	adapters := fakeAdapters{
		"a": {name: "a", confidence: 0.1},
		"b": {name: "b", confidence: 0.2},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.8, 1), cfg("b", 2, 0.8, 1)}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, 0.0, res.ConfidenceScore)
	assert.Equal(t, "hello", res.TranslatedText)
	assert.Empty(t, res.ProviderName)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, 0.0, h.spent("a"))
	assert.Equal(t, 0.0, h.spent("b"))
}

func TestChargeRejected(t *testing.T) {
	adapters := fakeAdapters{"a": {name: "a", confidence: 0.1}}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.8, 1)}, adapters, func(c *Config) {
		c.ChargeRejected = true
	})
	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "abc", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 3.0, h.spent("a"))
	assert.Equal(t, 3.0, res.Attempts[0].Cost)
}

func TestNoProvidersIsDegraded(t *testing.T) {
	h := newHarness(t, nil, fakeAdapters{}, nil)
	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Attempts)
}

func TestDisabledProviderNotTried(t *testing.T) {
	adapters := fakeAdapters{
		"a": {name: "a", confidence: 1},
		"b": {name: "b", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0), cfg("b", 2, 0.5, 0)}, adapters, nil)
	enabled := false
	require.NoError(t, h.store.Update(context.Background(), "a", models.ProviderUpdate{Enabled: &enabled}))

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.ProviderName)
	assert.Equal(t, int32(0), adapters["a"].calls.Load())
}

func TestAttemptTimeout(t *testing.T) {
	adapters := fakeAdapters{
		"slow": {name: "slow", confidence: 1, delay: 5 * time.Second},
		"fast": {name: "fast", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("slow", 1, 0.5, 0), cfg("fast", 2, 0.5, 0)}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr", Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "fast", res.ProviderName)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, string(provider.KindTimeout), res.Attempts[0].ErrorKind)

	s, _ := h.stats.Get("slow")
	assert.Equal(t, int64(1), s.TotalRequests)
	assert.Equal(t, int64(0), s.SuccessfulRequests)
}

func TestCancelledBeforeDispatch(t *testing.T) {
	adapters := fakeAdapters{"a": {name: "a", confidence: 1}}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 1)}, adapters, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.d.Translate(ctx, models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, int32(0), adapters["a"].calls.Load())
}

func TestCancellationStopsFurtherAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapters := fakeAdapters{
		"a": {name: "a", err: networkErr("a"), onCall: cancel},
		"b": {name: "b", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 1), cfg("b", 2, 0.5, 1)}, adapters, nil)

	res, err := h.d.Translate(ctx, models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, int32(0), adapters["b"].calls.Load())
}

func TestSuccessAfterCancelIsRecorded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the call completes even though the caller gave up mid-flight
	adapters := fakeAdapters{"a": {name: "a", confidence: 1, onCall: cancel}}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0.5)}, adapters, nil)

	res, err := h.d.Translate(ctx, models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "a", res.ProviderName)
	assert.Equal(t, 2.5, h.spent("a"))
}

func TestCancelDuringAttemptLetsCallFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapters := fakeAdapters{
		"a": {name: "a", confidence: 1, delay: 50 * time.Millisecond, onCall: func() {
			time.AfterFunc(10*time.Millisecond, cancel)
		}},
		"b": {name: "b", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0.5), cfg("b", 2, 0.5, 0.5)}, adapters, nil)

	res, err := h.d.Translate(ctx, models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	require.False(t, res.Degraded)
	assert.Equal(t, "a", res.ProviderName)
	assert.Equal(t, "a:hello", res.TranslatedText)
	assert.Equal(t, []string{"a=accepted"}, outcomes(res))
	assert.Equal(t, 2.5, h.spent("a"))
	assert.Equal(t, int32(0), adapters["b"].calls.Load())

	s, _ := h.stats.Get("a")
	assert.Equal(t, int64(1), s.SuccessfulRequests)
	assert.Equal(t, int64(0), s.TotalRequests-s.SuccessfulRequests)
}

func TestCancelDuringFailedAttemptStopsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapters := fakeAdapters{
		"a": {name: "a", err: networkErr("a"), delay: 50 * time.Millisecond, onCall: func() {
			time.AfterFunc(10*time.Millisecond, cancel)
		}},
		"b": {name: "b", confidence: 1},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0), cfg("b", 2, 0.5, 0)}, adapters, nil)

	res, err := h.d.Translate(ctx, models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, string(provider.KindNetwork), res.Attempts[0].ErrorKind)
	assert.Equal(t, int32(0), adapters["b"].calls.Load())
}

func TestAdapterUnavailableFallsThrough(t *testing.T) {
	adapters := fakeAdapters{"b": {name: "b", confidence: 1}}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0), cfg("b", 2, 0.5, 0)}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.ProviderName)
	assert.Equal(t, kindAdapter, res.Attempts[0].ErrorKind)
}

func TestStatsAndAudit(t *testing.T) {
	adapters := fakeAdapters{
		"a": {name: "a", err: networkErr("a")},
		"b": {name: "b", confidence: 0.3},
		"c": {name: "c", confidence: 0.9},
	}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 1), cfg("b", 2, 0.5, 1), cfg("c", 3, 0.5, 1)}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hey", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "c", res.ProviderName)

	for _, name := range []string{"a", "b"} {
		s, ok := h.stats.Get(name)
		require.True(t, ok)
		assert.Equal(t, int64(1), s.TotalRequests, name)
		assert.Equal(t, int64(0), s.SuccessfulRequests, name)
		assert.Equal(t, 0.0, s.TotalCost, name)
	}
	s, _ := h.stats.Get("c")
	assert.Equal(t, int64(1), s.SuccessfulRequests)
	assert.Equal(t, int64(3), s.TotalChars)
	assert.Equal(t, 3.0, s.TotalCost)

	require.Len(t, h.audit.entries, 3)
	for _, e := range h.audit.entries {
		assert.Equal(t, res.RequestID, e.RequestID)
		assert.Equal(t, "fr", e.TargetLang)
	}
	assert.Equal(t, models.OutcomeFailed, h.audit.entries[0].Outcome)
	assert.Equal(t, "network", h.audit.entries[0].ErrorKind)
	assert.Equal(t, models.OutcomeRejected, h.audit.entries[1].Outcome)
	assert.Equal(t, models.OutcomeAccepted, h.audit.entries[2].Outcome)
}

func TestCacheHitSkipsProviders(t *testing.T) {
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()
	c, err := cache.New(db, time.Hour)
	require.NoError(t, err)

	adapters := fakeAdapters{"a": {name: "a", confidence: 1}}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 1)}, adapters, func(cfg *Config) {
		cfg.Cache = c
	})
	ctx := context.Background()
	req := models.TranslationRequest{Text: "hello", TargetLang: "fr"}

	first, err := h.d.Translate(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := h.d.Translate(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.TranslatedText, second.TranslatedText)
	assert.Equal(t, "a", second.ProviderName)
	assert.Equal(t, 0.0, second.Cost)
	assert.Equal(t, int32(1), adapters["a"].calls.Load())
	assert.Equal(t, 5.0, h.spent("a"))
}

func TestCacheHitRecheckedAgainstLiveConfig(t *testing.T) {
	raise := 0.95
	off := false
	tests := []struct {
		name   string
		update models.ProviderUpdate
		aCalls int32
	}{
		{name: "threshold raised", update: models.ProviderUpdate{QualityThreshold: &raise}, aCalls: 2},
		{name: "provider disabled", update: models.ProviderUpdate{Enabled: &off}, aCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			defer db.Close()
			c, err := cache.New(db, time.Hour)
			require.NoError(t, err)

			adapters := fakeAdapters{
				"a": {name: "a", confidence: 0.9},
				"b": {name: "b", confidence: 1},
			}
			h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0), cfg("b", 2, 0.5, 0)}, adapters, func(cfg *Config) {
				cfg.Cache = c
			})
			ctx := context.Background()
			req := models.TranslationRequest{Text: "hello", TargetLang: "fr"}

			first, err := h.d.Translate(ctx, req)
			require.NoError(t, err)
			require.Equal(t, "a", first.ProviderName)

			require.NoError(t, h.store.Update(ctx, "a", tt.update))

			second, err := h.d.Translate(ctx, req)
			require.NoError(t, err)
			assert.False(t, second.Cached)
			assert.Equal(t, "b", second.ProviderName)
			assert.Equal(t, "b:hello", second.TranslatedText)
			assert.Equal(t, tt.aCalls, adapters["a"].calls.Load())

			third, err := h.d.Translate(ctx, req)
			require.NoError(t, err)
			assert.True(t, third.Cached)
			assert.Equal(t, "b", third.ProviderName)
			assert.Equal(t, int32(1), adapters["b"].calls.Load())
		})
	}
}

func TestTranslateBatch(t *testing.T) {
	a := &fakeAdapter{name: "a", confidence: 1, delay: 20 * time.Millisecond}
	h := newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0)}, fakeAdapters{"a": a}, func(c *Config) {
		c.Workers = 2
	})

	reqs := []models.TranslationRequest{
		{Text: "one", TargetLang: "fr"},
		{Text: "", TargetLang: "fr"},
		{Text: "three", TargetLang: "fr"},
		{Text: "four", TargetLang: "fr"},
		{Text: "five", TargetLang: "fr"},
	}
	items := h.d.TranslateBatch(context.Background(), reqs)
	require.Len(t, items, len(reqs))

	assert.ErrorIs(t, items[1].Err, ErrInvalidRequest)
	for i, it := range items {
		if i == 1 {
			continue
		}
		require.NoError(t, it.Err)
		assert.Equal(t, "a:"+reqs[i].Text, it.Result.TranslatedText)
	}
	assert.LessOrEqual(t, a.maxSeen.Load(), int32(2))
	assert.Equal(t, int32(4), a.calls.Load())
}

func TestStrictBudgetNeverOvershoots(t *testing.T) {
	a := cfg("a", 1, 0.5, 1)
	a.DailyBudget = models.Limit(15) // three five-char requests
	adapter := &fakeAdapter{name: "a", confidence: 1, delay: 10 * time.Millisecond}
	h := newHarness(t, []models.ProviderConfig{a}, fakeAdapters{"a": adapter}, func(c *Config) {
		c.StrictBudget = true
		c.Workers = 8
	})

	reqs := make([]models.TranslationRequest, 10)
	for i := range reqs {
		reqs[i] = models.TranslationRequest{Text: "hello", TargetLang: "fr"}
	}
	items := h.d.TranslateBatch(context.Background(), reqs)

	accepted := 0
	for _, it := range items {
		require.NoError(t, it.Err)
		if !it.Result.Degraded {
			accepted++
		}
	}
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 15.0, h.spent("a"))
	assert.Equal(t, 0.0, h.ledger.UsageRate("a", models.Budget{}).Reserved)
}

func TestSnapshotPinnedPerRequest(t *testing.T) {
	// disabling b while a runs does not remove b from this request's candidates
	var h *harness
	adapters := fakeAdapters{
		"a": {name: "a", err: networkErr("a"), onCall: func() {
			off := false
			_ = h.store.Update(context.Background(), "b", models.ProviderUpdate{Enabled: &off})
		}},
		"b": {name: "b", confidence: 1},
	}
	h = newHarness(t, []models.ProviderConfig{cfg("a", 1, 0.5, 0), cfg("b", 2, 0.5, 0)}, adapters, nil)

	res, err := h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.ProviderName)

	res, err = h.d.Translate(context.Background(), models.TranslationRequest{Text: "hello", TargetLang: "fr"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
}
