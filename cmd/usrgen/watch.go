package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/schemagen/usrgen/engine"
	"github.com/schemagen/usrgen/targets"
	"github.com/schemagen/usrgen/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate whenever a schema declaration changes",
	Long: `Run generate once, then again whenever a declaration file below the input
directory or the config file changes. Changes are debounced and runs never
overlap. The configuration is reloaded for every run.

Examples:
  usrgen watch
  usrgen watch --metrics-addr :9090`,
	RunE: runWatch,
}

var watchMetricsAddr string

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if watchMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: watchMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer srv.Close()
		logger.Info().Str("addr", watchMetricsAddr).Msg("serving metrics")
	}

	cycle := func(ctx context.Context) {
		cfg, err := loadConfig()
		if err != nil {
			logger.Error().Err(err).Msg("config reload failed")
			return
		}
		e, err := engine.New(cfg, targets.NewRegistry(),
			engine.WithLogger(logger),
			engine.WithMetrics(metrics),
		)
		if err != nil {
			logger.Error().Err(err).Msg("engine setup failed")
			return
		}
		if _, err := e.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("run failed")
		}
	}

	w := &watch.Watcher{
		Dirs:     []string{cfg.InputDir},
		Files:    []string{filepath.Clean(cfgFile)},
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
		Cycle:    cycle,
	}
	return w.Run(ctx)
}
