package models

// ProviderType selects the wire protocol used to reach a provider.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
)

// ProviderConfig is the configuration of one translation provider.
// Values are treated as immutable once published by the config store.
// An omitted budget is unlimited; a budget of 0 blocks every paid call.
type ProviderConfig struct {
	Name             string       `json:"name" yaml:"name" validate:"required"`
	Type             ProviderType `json:"type,omitempty" yaml:"type" validate:"omitempty,oneof=openai anthropic"`
	Enabled          bool         `json:"enabled" yaml:"enabled"`
	Priority         int          `json:"priority" yaml:"priority"`
	QualityThreshold float64      `json:"quality_threshold" yaml:"quality_threshold" validate:"gte=0,lte=1"`
	CostPerChar      float64      `json:"cost_per_char" yaml:"cost_per_char" validate:"gte=0"`
	DailyBudget      *float64     `json:"daily_budget,omitempty" yaml:"daily_budget,omitempty" validate:"omitempty,gte=0"`
	MonthlyBudget    *float64     `json:"monthly_budget,omitempty" yaml:"monthly_budget,omitempty" validate:"omitempty,gte=0"`
	Credentials      []string     `json:"credentials,omitempty" yaml:"credentials" validate:"required_if=Enabled true,dive,required"`
	Endpoint         string       `json:"endpoint,omitempty" yaml:"endpoint" validate:"omitempty,url"`
	ModelID          string       `json:"model_id,omitempty" yaml:"model_id"`
}

// Budget returns the spend ceilings of the provider.
func (p ProviderConfig) Budget() Budget {
	return Budget{Daily: p.DailyBudget, Monthly: p.MonthlyBudget}
}

// Clone returns a copy that shares no slices with p.
func (p ProviderConfig) Clone() ProviderConfig {
	out := p
	if p.Credentials != nil {
		out.Credentials = append([]string(nil), p.Credentials...)
	}
	if p.DailyBudget != nil {
		out.DailyBudget = Limit(*p.DailyBudget)
	}
	if p.MonthlyBudget != nil {
		out.MonthlyBudget = Limit(*p.MonthlyBudget)
	}
	return out
}

// Redacted returns a copy with credentials masked for display.
func (p ProviderConfig) Redacted() ProviderConfig {
	out := p.Clone()
	for i, c := range out.Credentials {
		out.Credentials[i] = MaskSecret(c)
	}
	return out
}

// ProviderUpdate is a partial update of a ProviderConfig. Nil fields are left
// unchanged. ClearDailyBudget and ClearMonthlyBudget lift a ceiling.
type ProviderUpdate struct {
	Type               *ProviderType `json:"type,omitempty" yaml:"type,omitempty"`
	Enabled            *bool         `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Priority           *int          `json:"priority,omitempty" yaml:"priority,omitempty"`
	QualityThreshold   *float64      `json:"quality_threshold,omitempty" yaml:"quality_threshold,omitempty"`
	CostPerChar        *float64      `json:"cost_per_char,omitempty" yaml:"cost_per_char,omitempty"`
	DailyBudget        *float64      `json:"daily_budget,omitempty" yaml:"daily_budget,omitempty"`
	MonthlyBudget      *float64      `json:"monthly_budget,omitempty" yaml:"monthly_budget,omitempty"`
	ClearDailyBudget   bool          `json:"clear_daily_budget,omitempty" yaml:"clear_daily_budget,omitempty"`
	ClearMonthlyBudget bool          `json:"clear_monthly_budget,omitempty" yaml:"clear_monthly_budget,omitempty"`
	Credentials        []string      `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Endpoint           *string       `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ModelID            *string       `json:"model_id,omitempty" yaml:"model_id,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProviderUpdate) IsEmpty() bool {
	return u.Type == nil && u.Enabled == nil && u.Priority == nil &&
		u.QualityThreshold == nil && u.CostPerChar == nil &&
		u.DailyBudget == nil && u.MonthlyBudget == nil &&
		!u.ClearDailyBudget && !u.ClearMonthlyBudget &&
		u.Credentials == nil && u.Endpoint == nil && u.ModelID == nil
}

// Apply returns a copy of cfg with the update's fields applied.
func (u ProviderUpdate) Apply(cfg ProviderConfig) ProviderConfig {
	out := cfg.Clone()
	if u.Type != nil {
		out.Type = *u.Type
	}
	if u.Enabled != nil {
		out.Enabled = *u.Enabled
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	if u.QualityThreshold != nil {
		out.QualityThreshold = *u.QualityThreshold
	}
	if u.CostPerChar != nil {
		out.CostPerChar = *u.CostPerChar
	}
	switch {
	case u.ClearDailyBudget:
		out.DailyBudget = nil
	case u.DailyBudget != nil:
		out.DailyBudget = Limit(*u.DailyBudget)
	}
	switch {
	case u.ClearMonthlyBudget:
		out.MonthlyBudget = nil
	case u.MonthlyBudget != nil:
		out.MonthlyBudget = Limit(*u.MonthlyBudget)
	}
	if u.Credentials != nil {
		out.Credentials = append([]string(nil), u.Credentials...)
	}
	if u.Endpoint != nil {
		out.Endpoint = *u.Endpoint
	}
	if u.ModelID != nil {
		out.ModelID = *u.ModelID
	}
	return out
}

// MaskSecret keeps the first four characters of a secret.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
