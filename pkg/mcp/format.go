package mcp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lingoroute/lingoroute/pkg/configstore"
	"github.com/lingoroute/lingoroute/pkg/control"
	"github.com/lingoroute/lingoroute/pkg/models"
)

// formatStatus formats the provider status as a text table.
func formatStatus(st control.Status) string {
	if len(st.Providers) == 0 {
		return "No providers configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Providers: %d enabled / %d total (config v%d)\n\n",
		st.EnabledProviders, st.TotalProviders, st.ConfigVersion)
	fmt.Fprintf(&b, "%-16s %-7s %4s %6s %12s %12s %8s %8s %8s\n",
		"Provider", "Enabled", "Prio", "Thresh", "Today", "Month", "Requests", "Success", "Avg ms")
	b.WriteString(strings.Repeat("-", 91) + "\n")
	for _, p := range st.Providers {
		fmt.Fprintf(&b, "%-16s %-7t %4d %6.2f %12s %12s %8d %7.1f%% %8d\n",
			truncate(p.Config.Name, 16), p.Config.Enabled, p.Config.Priority, p.Config.QualityThreshold,
			spendCell(p.Usage.SpentToday, p.Config.DailyBudget),
			spendCell(p.Usage.SpentThisMonth, p.Config.MonthlyBudget),
			p.Stats.TotalRequests, p.SuccessRate*100, p.Stats.AvgLatency.Milliseconds())
	}
	return b.String()
}

// spendCell renders spend against a ceiling, "-" when unlimited.
func spendCell(spent float64, limit *float64) string {
	if limit == nil {
		return fmt.Sprintf("%.2f/-", spent)
	}
	return fmt.Sprintf("%.2f/%.2f", spent, *limit)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// formatProvider formats one (redacted) provider configuration.
func formatProvider(cfg models.ProviderConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Provider %s updated\n", cfg.Name)
	fmt.Fprintf(&b, "  Enabled:           %t\n", cfg.Enabled)
	fmt.Fprintf(&b, "  Priority:          %d\n", cfg.Priority)
	fmt.Fprintf(&b, "  Quality threshold: %.2f\n", cfg.QualityThreshold)
	fmt.Fprintf(&b, "  Cost per char:     %g\n", cfg.CostPerChar)
	fmt.Fprintf(&b, "  Daily budget:      %s\n", models.FormatLimit(cfg.DailyBudget))
	fmt.Fprintf(&b, "  Monthly budget:    %s\n", models.FormatLimit(cfg.MonthlyBudget))
	fmt.Fprintf(&b, "  Credentials:       %s\n", strings.Join(cfg.Credentials, ", "))
	return b.String()
}

// formatValidation lists the rejected fields of a configuration update.
func formatValidation(verr *configstore.ValidationError) string {
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "Update rejected for %s:\n", verr.Provider)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, verr.Fields[k])
	}
	return b.String()
}

// formatTranslation formats a translation result with its attempt trail.
func formatTranslation(res models.TranslationResult) string {
	var b strings.Builder
	b.WriteString(res.TranslatedText + "\n\n")
	provider := res.ProviderName
	if provider == "" {
		provider = "(none)"
	}
	fmt.Fprintf(&b, "Provider:   %s\n", provider)
	fmt.Fprintf(&b, "Confidence: %.2f\n", res.ConfidenceScore)
	fmt.Fprintf(&b, "Cost:       %g\n", res.Cost)
	fmt.Fprintf(&b, "Latency:    %s\n", res.Latency.Round(time.Millisecond))
	if res.Degraded {
		b.WriteString("Degraded:   yes\n")
	}
	if res.Cached {
		b.WriteString("Cached:     yes\n")
	}
	if len(res.Attempts) > 0 {
		b.WriteString("\nAttempts:\n")
		for _, a := range res.Attempts {
			line := fmt.Sprintf("  %-16s %-9s", truncate(a.Provider, 16), a.Outcome)
			if a.ErrorKind != "" {
				line += " " + a.ErrorKind
			}
			if a.Outcome == models.OutcomeRejected || a.Outcome == models.OutcomeAccepted {
				line += fmt.Sprintf(" confidence=%.2f", a.Confidence)
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}
