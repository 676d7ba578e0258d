package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lingoroute/lingoroute/pkg/audit"
	"github.com/lingoroute/lingoroute/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the provider attempt journal",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		providerName string
		outcome      string
		since        string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search journaled provider attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Provider: providerName,
				Outcome:  models.Outcome(outcome),
				Limit:    limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (skipped, failed, rejected, accepted)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var requestID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show every attempt made for one request ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return fmt.Errorf("--request-id is required")
			}

			l, cleanup, err := openAuditLogger(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := l.Query(cmd.Context(), models.AuditQueryOpts{RequestID: requestID})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No attempts found for that request ID.")
				return nil
			}

			slices.Reverse(entries)
			fmt.Printf("Request ID:  %s\n", requestID)
			fmt.Printf("Target lang: %s\n\n", entries[0].TargetLang)
			for _, e := range entries {
				fmt.Printf("  %-20s %-9s", e.Provider, e.Outcome)
				if e.ErrorKind != "" {
					fmt.Printf(" kind=%s", e.ErrorKind)
				}
				fmt.Printf(" confidence=%.2f cost=%g chars=%d latency=%dms at=%s\n",
					e.Confidence, e.Cost, e.Chars, e.LatencyMs, e.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")
	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt counts by provider, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete attempts older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d audit entries.\n", deleted)
			return nil
		},
	}
}

func openAuditLogger(cmd *cobra.Command) (*audit.Logger, func(), error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	l, err := audit.New(cfg.Audit, nil)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-16s %-6s %-9s %-16s %6s %10s %8s %-20s\n",
		"REQUEST ID", "PROVIDER", "LANG", "OUTCOME", "ERROR", "CONF", "COST", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 138) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-38s %-16s %-6s %-9s %-16s %6.2f %10.6f %6dms %-20s\n",
			e.RequestID, e.Provider, e.TargetLang, e.Outcome, defaultStr(e.ErrorKind, "-"),
			e.Confidence, e.Cost, e.LatencyMs,
			e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No audit stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-9s %-12s %8s %12s\n", "PROVIDER", "OUTCOME", "DAY", "COUNT", "COST")
	b.WriteString(strings.Repeat("-", 65) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-20s %-9s %-12s %8d %12.6f\n", s.Provider, s.Outcome, s.Day, s.Count, s.Cost)
	}
	return b.String()
}
