package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lingoroute/lingoroute/pkg/models"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Inspect and update provider configuration",
	}
	cmd.AddCommand(newProviderListCmd(), newProviderSetCmd())
	return cmd
}

func newProviderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured providers in insertion order",
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
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tENABLED\tPRIORITY\tTHRESHOLD\tCOST/CHAR\tDAILY\tMONTHLY\tKEYS")
			for _, p := range all {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%.2f\t%g\t%s\t%s\t%d\n",
					p.Name, defaultStr(string(p.Type), string(models.ProviderOpenAI)), p.Enabled, p.Priority,
					p.QualityThreshold, p.CostPerChar, models.FormatLimit(p.DailyBudget), models.FormatLimit(p.MonthlyBudget), len(p.Credentials))
			}
			return w.Flush()
		},
	}
}

func newProviderSetCmd() *cobra.Command {
	var (
		remote      remoteFlags
		enabled     bool
		priority    int
		threshold   float64
		costPerChar float64
		daily       float64
		monthly     float64
		noDaily     bool
		noMonthly   bool
		credentials []string
		endpoint    string
		modelID     string
		ptype       string
	)

	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Apply a partial update to one provider",
		Long: "Apply a partial update to one provider. Only flags that are given are changed.\n" +
			"With --server the update goes through a running server; otherwise it is\n" +
			"written to the local database and picked up on the next start.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			f := cmd.Flags()

			var upd models.ProviderUpdate
			if f.Changed("enabled") {
				upd.Enabled = &enabled
			}
			if f.Changed("priority") {
				upd.Priority = &priority
			}
			if f.Changed("threshold") {
				upd.QualityThreshold = &threshold
			}
			if f.Changed("cost-per-char") {
				upd.CostPerChar = &costPerChar
			}
			if f.Changed("daily-budget") {
				upd.DailyBudget = &daily
			}
			if f.Changed("monthly-budget") {
				upd.MonthlyBudget = &monthly
			}
			upd.ClearDailyBudget = noDaily
			upd.ClearMonthlyBudget = noMonthly
			if f.Changed("credential") {
				upd.Credentials = credentials
			}
			if f.Changed("endpoint") {
				upd.Endpoint = &endpoint
			}
			if f.Changed("model") {
				upd.ModelID = &modelID
			}
			if f.Changed("type") {
				t := models.ProviderType(ptype)
				upd.Type = &t
			}
			if upd.IsEmpty() {
				return fmt.Errorf("nothing to update: pass at least one field flag")
			}

			var out models.ProviderConfig
			if remote.enabled() {
				if err := remote.do(http.MethodPatch, "/v1/providers/"+url.PathEscape(name), upd, &out); err != nil {
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
				if err := a.svc.ApplyConfigUpdate(cmd.Context(), name, upd); err != nil {
					return err
				}
				if out, err = a.svc.Provider(name); err != nil {
					return err
				}
			}

			fmt.Printf("Updated %s: enabled=%t priority=%d threshold=%.2f daily=%s monthly=%s keys=[%s]\n",
				out.Name, out.Enabled, out.Priority, out.QualityThreshold,
				models.FormatLimit(out.DailyBudget), models.FormatLimit(out.MonthlyBudget),
				strings.Join(out.Credentials, ", "))
			return nil
		},
	}

	remote.register(cmd)
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable the provider")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority (lower is tried first)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum accepted confidence in [0,1]")
	cmd.Flags().Float64Var(&costPerChar, "cost-per-char", 0, "cost per input character")
	cmd.Flags().Float64Var(&daily, "daily-budget", 0, "daily spend ceiling (0 blocks paid calls)")
	cmd.Flags().Float64Var(&monthly, "monthly-budget", 0, "monthly spend ceiling (0 blocks paid calls)")
	cmd.Flags().BoolVar(&noDaily, "no-daily-budget", false, "remove the daily spend ceiling")
	cmd.Flags().BoolVar(&noMonthly, "no-monthly-budget", false, "remove the monthly spend ceiling")
	cmd.MarkFlagsMutuallyExclusive("daily-budget", "no-daily-budget")
	cmd.MarkFlagsMutuallyExclusive("monthly-budget", "no-monthly-budget")
	cmd.Flags().StringSliceVar(&credentials, "credential", nil, "API key; repeat to set a rotation list")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API base URL")
	cmd.Flags().StringVar(&modelID, "model", "", "model ID")
	cmd.Flags().StringVar(&ptype, "type", "", "wire protocol: openai or anthropic")
	return cmd
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
