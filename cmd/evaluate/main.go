// Command evaluate scores the winner sets of a batch of elections and
// prints a summary table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ahrav/go-metricvote/infrastructure/dataset"
	"github.com/ahrav/go-metricvote/infrastructure/middleware"
	"github.com/ahrav/go-metricvote/infrastructure/report"
	"github.com/ahrav/go-metricvote/internal/application"
)

func main() {
	var (
		configPath  = flag.String("config", "experiment.yaml", "Experiment configuration file")
		batchPath   = flag.String("batch", "testdata/batches/two_blocs.json", "Batch file to evaluate")
		outputPath  = flag.String("output", "", "Write the report as JSON to this file")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, *configPath, *batchPath, *outputPath, *metricsAddr); err != nil {
		logger.Error("evaluation failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, logger *zap.Logger, configPath, batchPath, outputPath, metricsAddr string) error {
	registry := application.NewDefaultUnitRegistry()

	loader, err := application.NewConfigLoader(registry)
	if err != nil {
		return err
	}
	config, err := loader.LoadFromFile(ctx, configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	batch, err := dataset.NewJSONStore().Load(ctx, batchPath)
	if err != nil {
		return fmt.Errorf("load batch %s: %w", batchPath, err)
	}

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runner, err := application.NewRunner(config, registry,
		application.WithLogger(logger),
		application.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx, batch)
	if err != nil {
		return err
	}

	if err := report.WriteTable(os.Stdout, rep); err != nil {
		return err
	}

	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		if err := report.WriteJSON(f, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report written", zap.String("path", outputPath))
	}
	return nil
}
