package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/app"
	"github.com/tendant/simple-detection-data/internal/catalog"
	"github.com/tendant/simple-detection-data/internal/config"
	"github.com/tendant/simple-detection-data/internal/handlers"
	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/internal/metrics"
	"github.com/tendant/simple-detection-data/internal/transform"
)

// Dataset preview server: registers the configured dataset, serves its
// records and builds samples on demand.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps := app.Deps{
		Logger:   logger,
		Metrics:  metrics.New(reg),
		Metadata: catalog.NewMetadata(cfg.Datasets.CategoryMapping),
	}

	var store catalog.RecordStore
	if cfg.Database.URL != "" {
		db, err := catalog.OpenPostgres(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		if store, err = catalog.NewPostgresStore(context.Background(), db); err != nil {
			logger.Fatal("failed to prepare record store", zap.Error(err))
		}
		logger.Info("record store ready", zap.String("table", "dataset_records"))
	}

	cat := catalog.New(store, logger)
	build, err := app.BuildFunc(cfg, deps)
	if err != nil {
		logger.Fatal("failed to configure record builder", zap.Error(err))
	}
	name := cfg.Records.Dataset
	if err := cat.Register(name, build); err != nil {
		logger.Fatal("failed to register dataset", zap.Error(err))
	}

	train, inference := transform.NewRunner(), transform.NewRunner()
	for _, mode := range []struct {
		runner  *transform.Runner
		isTrain bool
	}{{train, true}, {inference, false}} {
		t, err := app.Transform(cfg, mode.isTrain, deps)
		if err != nil {
			logger.Fatal("failed to configure transform", zap.Error(err))
		}
		mode.runner.Register(name, t)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handlers.NewDatasetHandler(cat, train, inference, logger).Register(mux)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("dataset server ready",
			zap.String("addr", cfg.Server.Addr),
			zap.String("dataset", name),
			zap.String("variant", cfg.Records.Variant),
			zap.String("root", cfg.Records.Root))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
