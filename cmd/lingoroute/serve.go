package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lingoroute/lingoroute/pkg/config"
	"github.com/lingoroute/lingoroute/pkg/ledger"
	"github.com/lingoroute/lingoroute/pkg/server"
)

func newServeCmd() *cobra.Command {
	var (
		listen string
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the translation routing HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("watch") {
				cfg.Watch = watch
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			a, err := newApp(ctx, cfg, reg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := ledger.NewScheduler(a.ledger, cfg.Ledger.DailyReset, cfg.Ledger.MonthlyReset, a.logger)
			if err != nil {
				return err
			}
			sched.Start(ctx)
			defer sched.Stop()

			srv := server.New(a.svc, reg, server.Options{
				Listen:     cfg.Listen,
				AdminToken: cfg.AdminToken,
				MaxBatch:   cfg.Dispatcher.MaxBatch,
			}, a.logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			if cfg.Watch && path != "" {
				w, err := config.NewWatcher(path, a.store, 0, a.logger)
				if err != nil {
					return err
				}
				g.Go(func() error { return w.Run(gctx) })
			}

			a.logger.Info("lingoroute started",
				zap.String("version", version),
				zap.String("listen", cfg.Listen),
				zap.String("config", path),
				zap.Int("providers", len(a.store.All())),
				zap.Int("enabled", len(a.store.Snapshot())),
			)
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload providers when the config file changes")
	return cmd
}
