// Package stats aggregates per-provider request counters.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/lingoroute/lingoroute/pkg/models"
)

// Collector accumulates provider statistics. All counters of one provider
// change together under a single lock.
type Collector struct {
	mu      sync.Mutex
	stats   map[string]*models.ProviderStats
	metrics *Metrics
}

// New creates a collector. Metrics may be nil.
func New(m *Metrics) *Collector {
	return &Collector{stats: make(map[string]*models.ProviderStats), metrics: m}
}

// Metrics returns the collector's Prometheus collectors, or nil.
func (c *Collector) Metrics() *Metrics {
	return c.metrics
}

// Record adds one provider invocation.
func (c *Collector) Record(provider string, success bool, chars int, cost float64, latency time.Duration) {
	c.mu.Lock()
	s, ok := c.stats[provider]
	if !ok {
		s = &models.ProviderStats{Provider: provider}
		c.stats[provider] = s
	}
	s.TotalRequests++
	if success {
		s.SuccessfulRequests++
	}
	s.TotalChars += int64(chars)
	s.TotalCost += cost
	s.CumulativeLatency += latency
	s.AvgLatency += (latency - s.AvgLatency) / time.Duration(s.TotalRequests)
	c.mu.Unlock()

	if c.metrics != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		c.metrics.requests.WithLabelValues(provider, outcome).Inc()
		c.metrics.cost.WithLabelValues(provider).Add(cost)
		c.metrics.chars.WithLabelValues(provider).Add(float64(chars))
		c.metrics.latency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// Get returns a copy of one provider's statistics.
func (c *Collector) Get(provider string) (models.ProviderStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[provider]
	if !ok {
		return models.ProviderStats{Provider: provider}, false
	}
	return *s, true
}

// Snapshot returns a copy of every provider's statistics sorted by name.
func (c *Collector) Snapshot() []models.ProviderStats {
	c.mu.Lock()
	out := make([]models.ProviderStats, 0, len(c.stats))
	for _, s := range c.stats {
		out = append(out, *s)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// Reset clears all in-memory counters. Prometheus counters are monotonic and
// are not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.stats = make(map[string]*models.ProviderStats)
	c.mu.Unlock()
}
