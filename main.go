package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hans-elliott99/census-ml/catalog"
	"github.com/hans-elliott99/census-ml/census"
	"github.com/hans-elliott99/census-ml/config"
	"github.com/hans-elliott99/census-ml/models"
	"github.com/hans-elliott99/census-ml/services"
	"github.com/hans-elliott99/census-ml/storage"
	"github.com/hans-elliott99/census-ml/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== ACS bulk variable download starting ===")
	logger.Info("Config — year: %d | geography: %s | cache: %s | scrape: %t | concat: %t (%s)",
		cfg.Year, cfg.Geography, cfg.TempDir, cfg.ScrapeVars, cfg.ConcatVars, cfg.ConcatType)

	apiKey, err := config.LoadAPIKey(cfg.SecretsFile)
	if err != nil {
		logger.Error("Failed to load API key: %v", err)
		os.Exit(1)
	}

	store, err := storage.NewStore(cfg.TempDir)
	if err != nil {
		logger.Error("Failed to open cache store: %v", err)
		os.Exit(1)
	}

	ctx := context.Background()
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second

	logger.Info("Retrieving list of ACS variables.")
	provider := catalog.NewProvider(cfg.CatalogCache, cfg.CatalogURL, timeout, cfg.MaxRetries, logger)
	descs, err := provider.Get(ctx)
	if err != nil {
		logger.Error("Catalog unavailable: %v", err)
		os.Exit(1)
	}

	numeric := models.NumericVariables(descs)
	logger.Info("Catalog holds %d variables, %d numeric.", len(descs), len(numeric))

	if cfg.ScrapeVars {
		client := census.NewClient(cfg.APIBaseURL, apiKey, timeout)
		runner := services.NewScrapeRunner(cfg, logger, client, store)

		report, err := runner.Run(ctx, numeric)
		if err != nil {
			logger.Error("Scrape phase failed: %v", err)
			os.Exit(1)
		}
		if len(report.Failed) > 0 {
			logger.Warn("%d variables failed and remain un-cached — re-run to retry them", len(report.Failed))
		}
	}

	if !cfg.ConcatVars {
		logger.Info("Concatenation disabled — done.")
		return
	}

	merger := services.NewMerger(store, logger)

	var (
		ds        *models.Dataset
		variables []string
	)
	if cfg.LongForm() {
		logger.Info("Concatenating variables long.")
		ds, variables, err = merger.MergeLong()
	} else {
		logger.Info("Concatenating variables wide (join mode: %s).", cfg.JoinMode)
		ds, variables, err = merger.MergeWide(cfg.JoinMode)
	}
	if err != nil {
		logger.Error("Merge failed: %v", err)
		os.Exit(1)
	}

	csvWriter, err := storage.NewCSVWriter(cfg.FeaturesPath())
	if err != nil {
		logger.Error("Failed to create dataset writer: %v", err)
		os.Exit(1)
	}
	if err := csvWriter.Write(ds); err != nil {
		logger.Error("Dataset write failed: %v", err)
		_ = csvWriter.Close()
		os.Exit(1)
	}
	if err := csvWriter.Close(); err != nil {
		logger.Error("Dataset close failed: %v", err)
		os.Exit(1)
	}

	if err := storage.WriteManifest(cfg.ManifestPath(), variables); err != nil {
		logger.Error("Manifest write failed: %v", err)
		os.Exit(1)
	}

	if cfg.LoadPostgres {
		loadPostgres(cfg, logger, ds)
	}

	fmt.Printf("  Done. Dataset → %s (%d rows x %d cols) | Manifest → %s (%d variables)\n\n",
		cfg.FeaturesPath(), len(ds.Rows), len(ds.Columns), cfg.ManifestPath(), len(variables))
}

// loadPostgres is best-effort: the CSV and manifest on disk are the durable
// outputs, so a database failure logs and moves on.
func loadPostgres(cfg *config.Config, logger *utils.Logger, ds *models.Dataset) {
	if !cfg.LongForm() {
		logger.Warn("LOAD_POSTGRES only supports the long form — skipping database load")
		return
	}

	pg, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		return
	}
	defer pg.Close()

	if err := pg.WriteLong(ds, cfg.Year, cfg.Geography); err != nil {
		logger.Error("PostgreSQL load failed: %v", err)
		return
	}
	logger.Info("Long-form dataset loaded into PostgreSQL (table: census_features)")
}
