package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lingoroute/lingoroute/pkg/models"
	"github.com/lingoroute/lingoroute/pkg/server"
)

func newTranslateCmd() *cobra.Command {
	var (
		remote  remoteFlags
		to      string
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "translate [TEXT...]",
		Short: "Translate text through the provider chain",
		Long:  "Translate text through the provider chain. Text is read from stdin when no arguments are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimRight(string(data), "\n")
			}

			var res models.TranslationResult
			if remote.enabled() {
				var out server.TranslateResponse
				body := server.TranslateRequest{Text: text, TargetLang: to, TimeoutMs: timeout.Milliseconds()}
				if err := remote.do(http.MethodPost, "/v1/translate", body, &out); err != nil {
					return err
				}
				res = out.TranslationResult
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
				res, err = a.svc.Translate(cmd.Context(), models.TranslationRequest{Text: text, TargetLang: to, Timeout: timeout})
				if err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Println(res.TranslatedText)
			if res.Degraded {
				fmt.Fprintln(os.Stderr, "warning: no provider produced an acceptable translation; returning source text")
			} else {
				fmt.Fprintf(os.Stderr, "provider=%s confidence=%.2f cost=%g latency=%s cached=%t\n",
					res.ProviderName, res.ConfidenceScore, res.Cost, res.Latency.Round(time.Millisecond), res.Cached)
			}
			return nil
		},
	}

	remote.register(cmd)
	cmd.Flags().StringVarP(&to, "to", "t", "", "target language code (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-attempt timeout (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
