package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/hans-elliott99/census-ml/config"
	"github.com/hans-elliott99/census-ml/models"
	"github.com/hans-elliott99/census-ml/storage"
	"github.com/hans-elliott99/census-ml/utils"
)

// ErrMergeAborted means the cache directory itself could not be read: with
// no readable unit of work there is nothing to merge. Individual unreadable
// files are merely skipped.
var ErrMergeAborted = errors.New("merge: cache directory unreadable")

// Merger consolidates every cached record set in a store into one table.
// It never talks to the remote source — the cache directory is its only
// input, year filtering included (point it at one year's cache).
type Merger struct {
	store  storage.RecordSetStore
	logger *utils.Logger
}

// NewMerger creates a Merger over the given cache store.
func NewMerger(store storage.RecordSetStore, logger *utils.Logger) *Merger {
	return &Merger{store: store, logger: logger}
}

// MergeLong row-binds all cached variables:
//
//	| unique_id | variable    | value  |
//	-------------------------------------
//	| 17051     | B14004_001E | 2024.. |
//
// shape: (sum of per-variable geography counts) x 3. Rows simply stack, in
// directory listing order; no deduplication across variables with partial
// geography coverage. Also returns the manifest: the variable ids that were
// successfully loaded.
func (m *Merger) MergeLong() (*models.Dataset, []string, error) {
	files, err := m.store.ListFiles()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMergeAborted, err)
	}

	ds := &models.Dataset{Columns: []string{"unique_id", "variable", "value"}}
	var variables []string
	t0 := time.Now()

	for i, name := range files {
		rs, err := m.store.Read(name)
		if err != nil {
			m.logger.Warn("[merge] Skipping unreadable cache file %s: %v", name, err)
			continue
		}

		for _, row := range rs.Rows {
			ds.Rows = append(ds.Rows, []string{row.UniqueID(), rs.VariableID, row.Value})
		}
		variables = append(variables, rs.VariableID)

		if i%1000 == 0 {
			m.logger.Info("[merge] %.2f%% completed. [et=%.2fs]",
				100*float64(i+1)/float64(len(files)), time.Since(t0).Seconds())
		}
	}
	return ds, variables, nil
}

// MergeWide column-binds all cached variables into one row per geography:
//
//	| unique_id | B01001A_001E | B01001A_002E | ...
//	-------------------------------------------------
//	| 17051     | 20245.0      | 10297.0      | ...
//
// shape: n_geographies x (n_variables + 1). joinMode controls the row basis:
// config.JoinFirstVariable keeps exactly the unique_ids of the first file
// processed — a left join, so geographies present only in later variables
// are dropped and the row set depends on listing order. config.JoinUnion
// keeps every unique_id seen in any file, with missing cells left empty.
func (m *Merger) MergeWide(joinMode string) (*models.Dataset, []string, error) {
	files, err := m.store.ListFiles()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMergeAborted, err)
	}

	// order holds unique_ids in first-encounter order; cells maps a
	// unique_id to one cell per included variable.
	var order []string
	var variables []string
	cells := make(map[string][]string)
	t0 := time.Now()

	for i, name := range files {
		rs, err := m.store.Read(name)
		if err != nil {
			m.logger.Warn("[merge] Skipping unreadable cache file %s: %v", name, err)
			continue
		}

		col := len(variables)
		variables = append(variables, rs.VariableID)

		for _, row := range rs.Rows {
			uid := row.UniqueID()
			rowCells, seen := cells[uid]
			if !seen {
				if col > 0 && joinMode != config.JoinUnion {
					continue // absent from the join base: dropped
				}
				order = append(order, uid)
			}
			if len(rowCells) > col {
				continue // duplicate geography within one variable: first wins
			}
			for len(rowCells) < col {
				rowCells = append(rowCells, "")
			}
			cells[uid] = append(rowCells, row.Value)
		}

		if i%1000 == 0 {
			m.logger.Info("[merge] %.2f%% completed. [et=%.2fs]",
				100*float64(i+1)/float64(len(files)), time.Since(t0).Seconds())
		}
	}

	ds := &models.Dataset{Columns: append([]string{"unique_id"}, variables...)}
	for _, uid := range order {
		row := cells[uid]
		for len(row) < len(variables) {
			row = append(row, "")
		}
		ds.Rows = append(ds.Rows, append([]string{uid}, row...))
	}
	return ds, variables, nil
}
