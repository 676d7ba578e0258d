package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "lingoroute",
		Short:         "lingoroute: budget-aware translation routing across LLM providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to config file")

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newStatusCmd(),
		newProviderCmd(),
		newLedgerCmd(),
		newCacheCmd(),
		newAuditCmd(),
		newMCPCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
