package models

import "time"

// TranslationRequest is one unit of work for the dispatcher.
type TranslationRequest struct {
	Text       string        `json:"text"`
	TargetLang string        `json:"target_lang"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// Outcome classifies what happened to one provider attempt.
type Outcome string

const (
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected"
	OutcomeAccepted Outcome = "accepted"
)

// Attempt describes one candidate provider considered for a request.
type Attempt struct {
	Provider   string        `json:"provider"`
	Outcome    Outcome       `json:"outcome"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Cost       float64       `json:"cost,omitempty"`
	Latency    time.Duration `json:"latency,omitempty"`
}

// TranslationResult is what callers receive for every request.
type TranslationResult struct {
	TranslatedText  string        `json:"translated_text"`
	ConfidenceScore float64       `json:"confidence_score"`
	ProviderName    string        `json:"provider_name"`
	Cost            float64       `json:"cost"`
	Latency         time.Duration `json:"latency"`
	Timestamp       time.Time     `json:"timestamp"`
	Degraded        bool          `json:"degraded"`
	Cached          bool          `json:"cached,omitempty"`
	RequestID       string        `json:"request_id"`
	Attempts        []Attempt     `json:"attempts,omitempty"`
}
