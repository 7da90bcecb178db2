package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/app"
	"github.com/tendant/simple-detection-data/internal/catalog"
	"github.com/tendant/simple-detection-data/internal/config"
	"github.com/tendant/simple-detection-data/internal/logging"
)

// Builds the records of one dataset directory and writes them as JSON.
// Flags override the matching config values.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	root := flag.String("root", "", "dataset root directory")
	dir := flag.String("dir", "", "image directory relative to the root")
	variant := flag.String("variant", "", "record variant: csv or masks")
	name := flag.String("dataset", "", "dataset name used for category mapping")
	out := flag.String("o", "", "output file (default stdout)")
	persist := flag.Bool("persist", false, "also save the records to the database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	for flagValue, field := range map[*string]*string{
		root:    &cfg.Records.Root,
		dir:     &cfg.Records.Dir,
		variant: &cfg.Records.Variant,
		name:    &cfg.Records.Dataset,
	} {
		if *flagValue != "" {
			*field = *flagValue
		}
	}

	logger, err := logging.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	build, err := app.BuildFunc(cfg, app.Deps{
		Logger:   logger,
		Metadata: catalog.NewMetadata(cfg.Datasets.CategoryMapping),
	})
	if err != nil {
		logger.Fatal("failed to configure record builder", zap.Error(err))
	}
	records, err := build(ctx)
	if err != nil {
		logger.Fatal("failed to build records", zap.Error(err))
	}

	if *persist {
		if cfg.Database.URL == "" {
			logger.Fatal("-persist needs DATABASE_URL")
		}
		db, err := catalog.OpenPostgres(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()
		store, err := catalog.NewPostgresStore(ctx, db)
		if err != nil {
			logger.Fatal("failed to prepare record store", zap.Error(err))
		}
		if err := store.Save(ctx, cfg.Records.Dataset, records); err != nil {
			logger.Fatal("failed to save records", zap.Error(err))
		}
		logger.Info("records saved", zap.String("dataset", cfg.Records.Dataset), zap.Int("records", len(records)))
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Fatal("failed to create output file", zap.Error(err))
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		logger.Fatal("failed to write records", zap.Error(err))
	}
}
