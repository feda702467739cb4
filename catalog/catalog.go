// Package catalog serves the ACS variable reference table: every variable
// code the survey publishes, with its label and declared scalar type.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/hans-elliott99/census-ml/models"
	"github.com/hans-elliott99/census-ml/utils"
)

// ErrUnavailable is returned when the catalog can be served neither from the
// local cache nor from the remote reference table. Without a catalog no
// variables can be selected, so this aborts the run.
var ErrUnavailable = errors.New("catalog: variable catalog unavailable")

// The reference table's column layout. Predicate Type is the declared scalar
// type each variable's values carry.
const (
	colName          = 0
	colLabel         = 1
	colPredicateType = 6
	minColumns       = 7
)

// Provider loads the variable catalog, caching the remote reference table to
// a local CSV after the first fetch. The cache is treated as append-only
// reference data: once present it is returned verbatim, with no freshness
// check.
type Provider struct {
	cachePath string
	url       string
	http      *resty.Client
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

// NewProvider creates a Provider fetching from url and caching at cachePath.
func NewProvider(cachePath, url string, timeout time.Duration, maxRetries int, logger *utils.Logger) *Provider {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Provider{
		cachePath: cachePath,
		url:       url,
		http:      client,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Get returns every variable in the catalog, unfiltered; callers select the
// numeric subset themselves.
func (p *Provider) Get(ctx context.Context) ([]models.VariableDescriptor, error) {
	if _, err := os.Stat(p.cachePath); err == nil {
		descs, err := p.loadCache()
		if err != nil {
			return nil, fmt.Errorf("%w: reading cache %q: %v", ErrUnavailable, p.cachePath, err)
		}
		p.logger.Info("[catalog] Loaded %d variables from %s", len(descs), p.cachePath)
		return descs, nil
	}

	p.logger.Info("[catalog] No local catalog at %s — fetching %s", p.cachePath, p.url)

	var descs []models.VariableDescriptor
	err := p.retry.Do("catalog-fetch", func() error {
		var ferr error
		descs, ferr = p.fetch(ctx)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := p.saveCache(descs); err != nil {
		return nil, fmt.Errorf("%w: persisting cache: %v", ErrUnavailable, err)
	}
	p.logger.Info("[catalog] Fetched %d variables, cached to %s", len(descs), p.cachePath)
	return descs, nil
}

func (p *Provider) fetch(ctx context.Context) ([]models.VariableDescriptor, error) {
	res, err := p.http.R().SetContext(ctx).Get(p.url)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %q: %w", p.url, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("catalog: fetch %q: status %s", p.url, res.Status())
	}
	return ParseTable(bytes.NewReader(res.Body()))
}

// ParseTable extracts variable descriptors from the reference page's first
// HTML table. Header rows use <th> cells and fall out naturally.
func ParseTable(r io.Reader) ([]models.VariableDescriptor, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse html: %w", err)
	}

	var descs []models.VariableDescriptor
	doc.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minColumns {
			return
		}
		name := strings.TrimSpace(cells.Eq(colName).Text())
		if name == "" {
			return
		}
		descs = append(descs, models.VariableDescriptor{
			ID:    name,
			Label: strings.TrimSpace(cells.Eq(colLabel).Text()),
			Type:  strings.TrimSpace(cells.Eq(colPredicateType).Text()),
		})
	})

	if len(descs) == 0 {
		return nil, fmt.Errorf("catalog: no variable rows found in reference table")
	}
	return descs, nil
}

func (p *Provider) loadCache() ([]models.VariableDescriptor, error) {
	f, err := os.Open(p.cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: parse cache csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("catalog: cache %q has no variable rows", p.cachePath)
	}

	descs := make([]models.VariableDescriptor, 0, len(records)-1)
	for _, rec := range records[1:] { // skip header
		if len(rec) < 3 {
			continue
		}
		descs = append(descs, models.VariableDescriptor{ID: rec[0], Label: rec[1], Type: rec[2]})
	}
	return descs, nil
}

func (p *Provider) saveCache(descs []models.VariableDescriptor) error {
	f, err := os.Create(p.cachePath)
	if err != nil {
		return fmt.Errorf("catalog: create cache %q: %w", p.cachePath, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"name", "label", "predicate_type"}); err != nil {
		_ = f.Close()
		return fmt.Errorf("catalog: write cache header: %w", err)
	}
	for _, d := range descs {
		if err := w.Write([]string{d.ID, d.Label, d.Type}); err != nil {
			_ = f.Close()
			return fmt.Errorf("catalog: write cache row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
