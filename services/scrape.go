package services

import (
	"context"
	"sync"
	"time"

	"github.com/hans-elliott99/census-ml/config"
	"github.com/hans-elliott99/census-ml/models"
	"github.com/hans-elliott99/census-ml/storage"
	"github.com/hans-elliott99/census-ml/utils"
)

// VariableFetcher is the remote lookup the scrape runner drives. Satisfied
// by *census.Client.
type VariableFetcher interface {
	FetchVariable(ctx context.Context, id string, year int, descr, geography string) (models.VariableRecordSet, error)
}

// ScrapeRunner downloads every eligible variable not already cached for the
// configured year, one cache file per variable. Failures are isolated per
// variable: a failed fetch or write just leaves that variable un-cached, so
// the next run's completion scan picks it up again. The cache directory is
// therefore also the checkpoint — an interrupted batch loses nothing that
// was already written.
type ScrapeRunner struct {
	cfg     *config.Config
	logger  *utils.Logger
	fetcher VariableFetcher
	store   storage.RecordSetStore
}

// NewScrapeRunner wires a runner over the given fetcher and cache store.
func NewScrapeRunner(cfg *config.Config, logger *utils.Logger, fetcher VariableFetcher, store storage.RecordSetStore) *ScrapeRunner {
	return &ScrapeRunner{cfg: cfg, logger: logger, fetcher: fetcher, store: store}
}

// Run fetches and caches every descriptor not yet present, returning a
// per-variable outcome report. Only a failed completion scan aborts; all
// per-variable errors are logged and collected.
func (s *ScrapeRunner) Run(ctx context.Context, descs []models.VariableDescriptor) (*models.BatchReport, error) {
	completed, malformed, err := s.store.List(s.cfg.Year)
	if err != nil {
		return nil, err
	}
	for _, m := range malformed {
		s.logger.Warn("[scrape] Skipping cache entry: %v", m)
	}

	remaining := 0
	for _, d := range descs {
		if _, done := completed[d.ID]; !done {
			remaining++
		}
	}
	s.logger.Info("[scrape] %d / %d variables left to scrape for %d.", remaining, len(descs), s.cfg.Year)
	s.logger.Info("[scrape] Beginning the scrape.")

	report := &models.BatchReport{}
	var mu sync.Mutex
	pool := utils.NewWorkerPool(s.cfg.FetchConcurrency, s.cfg.RateLimitMs)
	t0 := time.Now()

	for i, desc := range descs {
		if _, done := completed[desc.ID]; done {
			continue
		}

		desc := desc
		pool.Submit(func() {
			rs, err := s.fetcher.FetchVariable(ctx, desc.ID, s.cfg.Year, desc.Label, s.cfg.Geography)
			if err == nil {
				err = s.store.Write(rs)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("[scrape] Variable failed: %s", desc.ID)
				s.logger.Error("[scrape] %v", err)
				report.Failed = append(report.Failed, models.VariableFailure{VariableID: desc.ID, Err: err})
				return
			}
			report.Succeeded = append(report.Succeeded, desc.ID)
		})

		if (i+1)%100 == 0 {
			s.logger.Info("[scrape] [%d / %d] %.2f%% completed in %.2fs",
				i+1, len(descs), 100*float64(i+1)/float64(len(descs)), time.Since(t0).Seconds())
		}
	}
	pool.Wait()

	s.logger.Info("[scrape] Done — %d fetched, %d failed, %d already cached [et=%.2fs]",
		len(report.Succeeded), len(report.Failed), len(completed), time.Since(t0).Seconds())
	return report, nil
}
