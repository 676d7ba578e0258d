package models

import "time"

// CacheEntry stores an accepted translation.
type CacheEntry struct {
	TextHash   string        `json:"text_hash"`
	TargetLang string        `json:"target_lang"`
	Provider   string        `json:"provider"`
	Translated string        `json:"translated"`
	Confidence float64       `json:"confidence"`
	CreatedAt  time.Time     `json:"created_at"`
	TTL        time.Duration `json:"ttl"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
