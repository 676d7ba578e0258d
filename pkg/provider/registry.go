package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/lingoroute/lingoroute/pkg/models"
)

// Factory builds an adapter for a provider configuration.
type Factory func(cfg models.ProviderConfig) (Adapter, error)

// Build is the default factory, selecting the adapter by cfg.Type.
func Build(cfg models.ProviderConfig) (Adapter, error) {
	switch cfg.Type {
	case "", models.ProviderOpenAI:
		return NewOpenAI(cfg, nil), nil
	case models.ProviderAnthropic:
		return NewAnthropic(cfg, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

type registryEntry struct {
	fingerprint string
	adapter     Adapter
}

// Registry caches one adapter per provider, rebuilding it when the parts of
// its configuration that affect the wire call change.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	entries map[string]registryEntry
}

// NewRegistry creates a registry. A nil factory uses Build.
func NewRegistry(factory Factory) *Registry {
	if factory == nil {
		factory = Build
	}
	return &Registry{factory: factory, entries: make(map[string]registryEntry)}
}

// Get returns the adapter for cfg.
func (r *Registry) Get(cfg models.ProviderConfig) (Adapter, error) {
	fp := fingerprint(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[cfg.Name]; ok && e.fingerprint == fp {
		return e.adapter, nil
	}
	a, err := r.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build adapter %s: %w", cfg.Name, err)
	}
	r.entries[cfg.Name] = registryEntry{fingerprint: fp, adapter: a}
	return a, nil
}

// Len returns the number of cached adapters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func fingerprint(cfg models.ProviderConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", cfg.Type, cfg.Endpoint, cfg.ModelID, strings.Join(cfg.Credentials, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}
