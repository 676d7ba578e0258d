package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect provider spend against budgets",
	}
	cmd.AddCommand(newLedgerShowCmd(), newLedgerRecordsCmd())
	return cmd
}

func newLedgerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show today's and this month's spend per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			all := a.store.All()
			if len(all) == 0 {
				fmt.Println("No providers configured.")
				return nil
			}
			loc := a.ledger.Location()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tDAY START\tTODAY\tDAILY RATE\tMONTH START\tMONTH\tMONTHLY RATE")
			for _, p := range all {
				u := a.ledger.UsageRate(p.Name, p.Budget())
				fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%s\t%.4f\t%s\n",
					p.Name, u.DayStart.In(loc).Format("2006-01-02"), u.SpentToday, rate(u.DailyRate, p.DailyBudget),
					u.MonthStart.In(loc).Format("2006-01"), u.SpentThisMonth, rate(u.MonthlyRate, p.MonthlyBudget))
			}
			return w.Flush()
		},
	}
}

func rate(r float64, limit *float64) string {
	if limit == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", r*100)
}

func newLedgerRecordsCmd() *cobra.Command {
	var (
		providerName string
		since        string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List journaled spend records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			var from time.Time
			if since != "" {
				from, err = time.ParseInLocation("2006-01-02", since, a.ledger.Location())
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
			}
			recs, err := a.ledger.Records(cmd.Context(), providerName, from, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No spend records found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROVIDER\tCOST\tTIME")
			for _, r := range recs {
				fmt.Fprintf(w, "%d\t%s\t%.6f\t%s\n", r.ID, r.Provider, r.Cost, r.CreatedAt.In(a.ledger.Location()).Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max records to show")
	return cmd
}
