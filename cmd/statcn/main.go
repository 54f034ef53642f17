// Command statcn downloads public-finance catalogs and series from the
// national statistics portal and writes region-year panel artifacts.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/HarllyZhou/statcn-etl/internal/adapter/csvsink"
	httpadapter "github.com/HarllyZhou/statcn-etl/internal/adapter/http"
	kafkaadapter "github.com/HarllyZhou/statcn-etl/internal/adapter/kafka"
	"github.com/HarllyZhou/statcn-etl/internal/adapter/stats"
	"github.com/HarllyZhou/statcn-etl/internal/config"
	"github.com/HarllyZhou/statcn-etl/internal/observability"
	"github.com/HarllyZhou/statcn-etl/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "statcn",
		Short:         "Download region-year statistics panels from the national data portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "trees",
		Short: "Probe candidates and write the indicator and region catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, func(ctx context.Context, p *pipeline.Pipeline) error {
				return p.RunTrees(ctx)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "panel",
		Short: "Download the configured series and assemble the panel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, func(ctx context.Context, p *pipeline.Pipeline) error {
				return p.Run(ctx)
			})
		},
	})

	return root
}

func run(parent context.Context, configPath string, fn func(context.Context, *pipeline.Pipeline) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := stats.NewClient(stats.Options{
		Endpoints:    cfg.Endpoints,
		UserAgent:    cfg.UserAgent,
		BootTimeout:  cfg.BootTimeout,
		QueryTimeout: cfg.QueryTimeout,
	}, clock, logger)
	sink := csvsink.NewWriter(cfg.OutputDir, logger)

	// Publishing is feature-flagged by kafka.brokers.
	var publisher pipeline.PanelPublisher
	var kafkaWriter *kafkaadapter.Writer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaWriter = kafkaadapter.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, clock, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "topic", cfg.Kafka.Topic)
	}

	p := pipeline.New(client, sink, publisher, logger, metrics, cfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := fn(ctx, p)
	if runErr != nil {
		logger.Error("run failed", "error", runErr)
	} else {
		logger.Info("run complete")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	return runErr
}
