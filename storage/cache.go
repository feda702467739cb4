package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/hans-elliott99/census-ml/models"
)

const (
	cacheExt  = ".parquet"
	tmpPrefix = ".tmp-"
)

// Key identifies one cached unit of work: a single variable in a single
// year. Each year's cache is independent even when variable ids repeat.
type Key struct {
	VariableID string
	Year       int
}

// Filename renders the cache naming convention, e.g.
// "B01001_001E--2021.parquet". The "--" delimiter is load-bearing: the
// completion scan splits on it.
func (k Key) Filename() string {
	return fmt.Sprintf("%s--%d%s", k.VariableID, k.Year, cacheExt)
}

// ParseFilename inverts Filename. Files that do not split into a variable id
// and an integer year are malformed entries.
func ParseFilename(name string) (Key, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "--")
	if len(parts) != 2 || parts[0] == "" {
		return Key{}, &MalformedEntryError{Name: name}
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return Key{}, &MalformedEntryError{Name: name}
	}
	return Key{VariableID: parts[0], Year: year}, nil
}

// MalformedEntryError reports a cache-directory file that does not follow
// the <variable>--<year> naming convention. It fails only that file, never
// the scan.
type MalformedEntryError struct {
	Name string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("storage: malformed cache entry %q", e.Name)
}

// WriteError reports a failure to persist one record set. Like a failed
// fetch, it leaves the variable un-cached for the next run.
type WriteError struct {
	Key Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: write cache entry %s: %v", e.Key.Filename(), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store is the per-variable cache: a directory of parquet files that doubles
// as the run's completion index. The directory is the single source of truth
// for work completed — an interrupted run resumes wherever its files stop.
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed and returns a Store over it.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create cache dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the cache directory path.
func (s *Store) Dir() string { return s.dir }

// Exists reports whether the key already has a cached record set.
func (s *Store) Exists(key Key) bool {
	_, err := os.Stat(filepath.Join(s.dir, key.Filename()))
	return err == nil
}

// Write persists one record set, replacing any previous entry wholesale.
// The file is written to a temp name and renamed into place, so an entry
// either exists complete or not at all — even under concurrent writers or a
// mid-write crash.
func (s *Store) Write(rs models.VariableRecordSet) error {
	key := Key{VariableID: rs.VariableID, Year: rs.Year}
	tmp := filepath.Join(s.dir, tmpPrefix+key.Filename())

	if err := parquet.WriteFile(tmp, rs.Rows); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Key: key, Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, key.Filename())); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

// List scans the cache directory and returns the variable ids already cached
// for the target year — the skip list for a resumed run. Files cached under
// other years are ignored; files that don't follow the naming convention are
// returned as malformed entries without failing the scan.
func (s *Store) List(year int) (map[string]struct{}, []*MalformedEntryError, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: list cache dir %q: %w", s.dir, err)
	}

	completed := make(map[string]struct{})
	var malformed []*MalformedEntryError
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tmpPrefix) {
			continue
		}
		key, err := ParseFilename(name)
		if err != nil {
			malformed = append(malformed, &MalformedEntryError{Name: name})
			continue
		}
		if key.Year != year {
			continue
		}
		completed[key.VariableID] = struct{}{}
	}
	return completed, malformed, nil
}

// ListFiles returns every regular cache file name, in directory listing
// order. The merge phase consumes all of them regardless of year — pointing
// the directory at a single year's cache is the operator's job.
func (s *Store) ListFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list cache dir %q: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Read loads one cached record set by file name.
func (s *Store) Read(name string) (models.VariableRecordSet, error) {
	key, err := ParseFilename(name)
	if err != nil {
		return models.VariableRecordSet{}, err
	}

	rows, err := parquet.ReadFile[models.GeoRecord](filepath.Join(s.dir, name))
	if err != nil {
		return models.VariableRecordSet{}, fmt.Errorf("storage: read cache entry %q: %w", name, err)
	}

	rs := models.VariableRecordSet{VariableID: key.VariableID, Year: key.Year, Rows: rows}
	if len(rows) > 0 {
		rs.Descr = rows[0].Descr
	}
	return rs, nil
}
