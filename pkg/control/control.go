// Package control implements the operator-facing operations shared by the
// HTTP and MCP surfaces.
package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/dispatcher"
	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/logging"
	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/stats"
)

// ErrCacheDisabled is returned by CacheStats when no cache is configured.
var ErrCacheDisabled = errors.New("translation cache disabled")

// CacheStatser reports translation cache metrics.
type CacheStatser interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// ProviderStatus is the per-provider part of a Status.
type ProviderStatus struct {
	Config      models.ProviderConfig `json:"config"`
	Usage       models.LedgerUsage    `json:"usage"`
	Stats       models.ProviderStats  `json:"stats"`
	SuccessRate float64               `json:"success_rate"`
}

// Status is the aggregate view returned by GetStatus.
type Status struct {
	EnabledProviders int              `json:"enabled_providers"`
	TotalProviders   int              `json:"total_providers"`
	ConfigVersion    uint64           `json:"config_version"`
	Providers        []ProviderStatus `json:"providers"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Service wires the control operations to the running components.
type Service struct {
	store      *configstore.Store
	ledger     *ledger.Ledger
	stats      *stats.Collector
	dispatcher *dispatcher.Dispatcher
	cache      CacheStatser
	logger     *zap.Logger
}

// New creates a Service. cache may be nil.
func New(store *configstore.Store, l *ledger.Ledger, st *stats.Collector, d *dispatcher.Dispatcher, cache CacheStatser, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		ledger:     l,
		stats:      st,
		dispatcher: d,
		cache:      cache,
		logger:     logging.OrNop(logger),
	}
}

// GetStatus returns every provider's configuration (credentials masked),
// budget usage and statistics.
func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	all := s.store.All()
	st := Status{
		TotalProviders: len(all),
		ConfigVersion:  s.store.Version(),
		Providers:      make([]ProviderStatus, 0, len(all)),
		GeneratedAt:    time.Now(),
	}
	for _, cfg := range all {
		if cfg.Enabled {
			st.EnabledProviders++
		}
		ps := ProviderStatus{Config: cfg.Redacted()}
		if s.ledger != nil {
			ps.Usage = s.ledger.UsageRate(cfg.Name, cfg.Budget())
		}
		if s.stats != nil {
			ps.Stats, _ = s.stats.Get(cfg.Name)
			ps.SuccessRate = ps.Stats.SuccessRate()
		}
		st.Providers = append(st.Providers, ps)
	}
	return st, nil
}

// ApplyConfigUpdate applies a partial update to one provider. It returns
// *configstore.ValidationError or configstore.ErrNotFound on rejection.
func (s *Service) ApplyConfigUpdate(ctx context.Context, name string, upd models.ProviderUpdate) error {
	if upd.IsEmpty() {
		return &configstore.ValidationError{Provider: name, Fields: map[string]string{"update": "update has no fields"}}
	}
	if err := s.store.Update(ctx, name, upd); err != nil {
		return fmt.Errorf("apply config update: %w", err)
	}
	return nil
}

// Provider returns one provider's configuration with credentials masked.
func (s *Service) Provider(name string) (models.ProviderConfig, error) {
	cfg, err := s.store.Get(name)
	if err != nil {
		return models.ProviderConfig{}, err
	}
	return cfg.Redacted(), nil
}

// ResetStats clears the in-memory provider statistics.
func (s *Service) ResetStats() {
	if s.stats != nil {
		s.stats.Reset()
		s.logger.Info("provider stats reset")
	}
}

// Translate forwards one request to the dispatcher.
func (s *Service) Translate(ctx context.Context, req models.TranslationRequest) (models.TranslationResult, error) {
	return s.dispatcher.Translate(ctx, req)
}

// TranslateBatch forwards a batch to the dispatcher.
func (s *Service) TranslateBatch(ctx context.Context, reqs []models.TranslationRequest) []dispatcher.BatchItem {
	return s.dispatcher.TranslateBatch(ctx, reqs)
}

// CacheStats returns translation cache metrics.
func (s *Service) CacheStats(ctx context.Context) (models.CacheStats, error) {
	if s.cache == nil {
		return models.CacheStats{}, ErrCacheDisabled
	}
	return s.cache.Stats(ctx)
}
