// Package dispatcher routes translation requests across providers with
// budget checks, quality gating and fallback.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/provider"
	"github.com/lingoroute/lingoroute/pkg/stats"
)

// ErrInvalidRequest is returned before dispatch for malformed requests.
var ErrInvalidRequest = errors.New("invalid translation request")

// ProviderSource supplies the ordered list of enabled providers.
type ProviderSource interface {
	Snapshot() []models.ProviderConfig
}

// AdapterSource returns the adapter for a provider configuration.
type AdapterSource interface {
	Get(cfg models.ProviderConfig) (provider.Adapter, error)
}

// Cache stores accepted translations.
type Cache interface {
	Get(ctx context.Context, targetLang, text string) (models.CacheEntry, bool)
	Put(ctx context.Context, text string, e models.CacheEntry) error
}

// Auditor journals provider attempts.
type Auditor interface {
	Log(ctx context.Context, e models.AuditEntry) error
}

// Config wires the dispatcher's collaborators and policies. Cache and
// Audit are optional.
type Config struct {
	Store    ProviderSource
	Adapters AdapterSource
	Ledger   *ledger.Ledger
	Stats    *stats.Collector
	Cache    Cache
	Audit    Auditor
	Logger   *zap.Logger

	// Workers bounds concurrent requests in TranslateBatch.
	Workers int
	// DefaultTimeout bounds each provider attempt when the request sets none.
	DefaultTimeout time.Duration
	// ChargeRejected records cost for responses rejected on confidence.
	ChargeRejected bool
	// StrictBudget reserves projected cost before invoking a provider.
	StrictBudget bool
}

// Dispatcher is the single entry point for translations. It never returns
// provider errors; exhaustion yields a degraded result.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger
	newID  func() string
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Adapters == nil {
		cfg.Adapters = provider.NewRegistry(nil)
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.New(nil)
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: logging.OrNop(cfg.Logger),
		newID:  uuid.NewString,
	}
}

func validateRequest(req models.TranslationRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.TargetLang) == "" {
		return fmt.Errorf("%w: target_lang is empty", ErrInvalidRequest)
	}
	if req.Timeout < 0 {
		return fmt.Errorf("%w: timeout is negative", ErrInvalidRequest)
	}
	return nil
}

// Translate dispatches one request. The only error it returns is
// ErrInvalidRequest; every other outcome is a TranslationResult, degraded
// when no provider produced an acceptable translation or the caller
// cancelled ctx.
func (d *Dispatcher) Translate(ctx context.Context, req models.TranslationRequest) (models.TranslationResult, error) {
	if err := validateRequest(req); err != nil {
		return models.TranslationResult{}, err
	}
	start := time.Now()
	reqID := d.newID()
	candidates := d.cfg.Store.Snapshot()

	if d.cfg.Cache != nil {
		if e, ok := d.cfg.Cache.Get(ctx, req.TargetLang, req.Text); ok && servable(e, candidates) {
			d.cfg.Stats.Metrics().ObserveDispatch("cached")
			return models.TranslationResult{
				TranslatedText:  e.Translated,
				ConfidenceScore: e.Confidence,
				ProviderName:    e.Provider,
				Latency:         time.Since(start),
				Timestamp:       time.Now(),
				Cached:          true,
				RequestID:       reqID,
			}, nil
		}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = d.cfg.DefaultTimeout
	}

	r := &dispatch{
		d:          d,
		req:        req,
		reqID:      reqID,
		chars:      utf8.RuneCountInString(req.Text),
		timeout:    timeout,
		start:      start,
		candidates: candidates,
		logger:     d.logger.With(zap.String("request_id", reqID)),
	}
	return r.run(ctx), nil
}

// servable reports whether a cached translation would still be accepted
// under the current configuration: its provider is enabled and its
// confidence meets that provider's threshold.
func servable(e models.CacheEntry, candidates []models.ProviderConfig) bool {
	for _, c := range candidates {
		if c.Name == e.Provider {
			return e.Confidence >= c.QualityThreshold
		}
	}
	return false
}
