package models

import "time"

// AuditEntry records a single provider attempt made while serving a request.
type AuditEntry struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Provider   string    `json:"provider"`
	TargetLang string    `json:"target_lang"`
	Outcome    Outcome   `json:"outcome"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Confidence float64   `json:"confidence"`
	Cost       float64   `json:"cost"`
	Chars      int       `json:"chars"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditConfig controls the attempt journal.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	DBPath        string `yaml:"db_path" envconfig:"DB_PATH"`
	RetentionDays int    `yaml:"retention_days" envconfig:"RETENTION_DAYS"`
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Provider  string
	Outcome   Outcome
	RequestID string
	Since     time.Time
	Limit     int
}

// AuditStat holds aggregate attempt counts for a provider/outcome/day combination.
type AuditStat struct {
	Provider string  `json:"provider"`
	Outcome  Outcome `json:"outcome"`
	Day      string  `json:"day"`
	Count    int     `json:"count"`
	Cost     float64 `json:"cost"`
}
