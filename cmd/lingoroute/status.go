package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lingoroute/lingoroute/pkg/control"
)

func newStatusCmd() *cobra.Command {
	var (
		remote remoteFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show provider configuration, budget usage and statistics",
		Long: "Show provider configuration, budget usage and statistics.\n\n" +
			"Without --server the local database is read; request statistics are\n" +
			"only kept in memory, so they are reported by a running server only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st control.Status
			if remote.enabled() {
				if err := remote.do(http.MethodGet, "/v1/status", nil, &st); err != nil {
					return err
				}
			} else {
				cfg, _, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				a, err := newApp(cmd.Context(), cfg, nil)
				if err != nil {
					return err
				}
				defer a.Close()
				if st, err = a.svc.GetStatus(cmd.Context()); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			return printStatus(os.Stdout, st)
		},
	}

	remote.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printStatus(out io.Writer, st control.Status) error {
	if len(st.Providers) == 0 {
		fmt.Fprintln(out, "No providers configured.")
		return nil
	}
	fmt.Fprintf(out, "%d of %d providers enabled (config v%d)\n\n", st.EnabledProviders, st.TotalProviders, st.ConfigVersion)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tENABLED\tPRIORITY\tTHRESHOLD\tTODAY\tMONTH\tREQUESTS\tSUCCESS\tAVG LATENCY")
	for _, p := range st.Providers {
		fmt.Fprintf(w, "%s\t%t\t%d\t%.2f\t%s\t%s\t%d\t%.1f%%\t%s\n",
			p.Config.Name, p.Config.Enabled, p.Config.Priority, p.Config.QualityThreshold,
			spend(p.Usage.SpentToday, p.Usage.DailyRate, p.Config.DailyBudget),
			spend(p.Usage.SpentThisMonth, p.Usage.MonthlyRate, p.Config.MonthlyBudget),
			p.Stats.TotalRequests, p.SuccessRate*100, p.Stats.AvgLatency)
	}
	return w.Flush()
}

func spend(spent, rate float64, limit *float64) string {
	if limit == nil {
		return fmt.Sprintf("%.4f (unlimited)", spent)
	}
	return fmt.Sprintf("%.4f / %.2f (%.0f%%)", spent, *limit, rate*100)
}
