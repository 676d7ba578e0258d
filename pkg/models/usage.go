package models

import "time"

// ProviderStats is a read-only view of one provider's counters.
type ProviderStats struct {
	Provider           string        `json:"provider"`
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	TotalChars         int64         `json:"total_chars"`
	TotalCost          float64       `json:"total_cost"`
	CumulativeLatency  time.Duration `json:"cumulative_latency"`
	AvgLatency         time.Duration `json:"avg_latency"` // running mean, updated per Record
}

// FailedRequests returns the number of requests that did not succeed.
func (s ProviderStats) FailedRequests() int64 {
	return s.TotalRequests - s.SuccessfulRequests
}

// SuccessRate returns successful/total, or 0 when nothing was recorded.
func (s ProviderStats) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.SuccessfulRequests) / float64(s.TotalRequests)
}
