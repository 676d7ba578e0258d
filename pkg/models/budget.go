package models

import (
	"strconv"
	"time"
)

// BudgetPeriod defines the time window of a spend ceiling.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// Budget holds the spend ceilings of one provider. A nil ceiling is
// unlimited. A zero ceiling admits no paid call.
type Budget struct {
	Daily   *float64 `json:"daily,omitempty"`
	Monthly *float64 `json:"monthly,omitempty"`
}

// Limit returns v as a spend ceiling.
func Limit(v float64) *float64 {
	return &v
}

// FormatLimit renders a ceiling for display.
func FormatLimit(limit *float64) string {
	if limit == nil {
		return "unlimited"
	}
	return strconv.FormatFloat(*limit, 'g', -1, 64)
}

// LedgerUsage reports spend against budget for one provider.
type LedgerUsage struct {
	Provider       string    `json:"provider"`
	DayStart       time.Time `json:"day_start"`
	MonthStart     time.Time `json:"month_start"`
	SpentToday     float64   `json:"spent_today"`
	SpentThisMonth float64   `json:"spent_this_month"`
	Reserved       float64   `json:"reserved,omitempty"`
	DailyRate      float64   `json:"daily_rate"`
	MonthlyRate    float64   `json:"monthly_rate"`
}

// SpendRecord is one cost entry in the ledger journal.
type SpendRecord struct {
	ID        int64     `json:"id"`
	Provider  string    `json:"provider"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"created_at"`
}
