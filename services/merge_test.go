package services

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hans-elliott99/census-ml/config"
	"github.com/hans-elliott99/census-ml/models"
	"github.com/hans-elliott99/census-ml/storage"
	"github.com/hans-elliott99/census-ml/utils"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func writeVariable(t *testing.T, store *storage.Store, id string, year int, subGeos ...string) {
	t.Helper()
	rs := models.VariableRecordSet{VariableID: id, Year: year, Descr: "descr " + id}
	for _, sg := range subGeos {
		rs.Rows = append(rs.Rows, models.GeoRecord{
			State:  "1",
			SubGeo: sg,
			Year:   year,
			Descr:  rs.Descr,
			Value:  id + "@" + sg,
		})
	}
	if err := store.Write(rs); err != nil {
		t.Fatal(err)
	}
}

func TestMergeLongStacksRows(t *testing.T) {
	store := newTestStore(t)
	// Variable ids chosen so directory listing order is A1 then B2.
	writeVariable(t, store, "A1", 2020, "01", "02", "03", "04", "05")
	writeVariable(t, store, "B2", 2020, "01", "02", "03")

	m := NewMerger(store, utils.NewLogger())
	ds, variables, err := m.MergeLong()
	if err != nil {
		t.Fatalf("MergeLong: %v", err)
	}

	if len(ds.Rows) != 8 {
		t.Fatalf("expected 5+3=8 rows, got %d", len(ds.Rows))
	}
	if !reflect.DeepEqual(ds.Columns, []string{"unique_id", "variable", "value"}) {
		t.Errorf("columns = %v", ds.Columns)
	}
	if !reflect.DeepEqual(variables, []string{"A1", "B2"}) {
		t.Errorf("variables = %v", variables)
	}

	for _, row := range ds.Rows {
		if len(row) != 3 {
			t.Fatalf("row %v carries extra fields", row)
		}
		if row[1] != "A1" && row[1] != "B2" {
			t.Errorf("unexpected variable tag %q", row[1])
		}
	}
	if ds.Rows[0][0] != "101" || ds.Rows[0][2] != "A1@01" {
		t.Errorf("rows[0] = %v", ds.Rows[0])
	}
}

func TestMergeWideFirstVariableJoin(t *testing.T) {
	store := newTestStore(t)
	writeVariable(t, store, "A1", 2020, "01", "02") // unique_ids 101, 102
	writeVariable(t, store, "B2", 2020, "02", "03") // unique_ids 102, 103

	m := NewMerger(store, utils.NewLogger())
	ds, variables, err := m.MergeWide(config.JoinFirstVariable)
	if err != nil {
		t.Fatalf("MergeWide: %v", err)
	}

	if !reflect.DeepEqual(variables, []string{"A1", "B2"}) {
		t.Fatalf("variables = %v", variables)
	}
	if !reflect.DeepEqual(ds.Columns, []string{"unique_id", "A1", "B2"}) {
		t.Errorf("columns = %v", ds.Columns)
	}

	// Left join on the first-processed variable: 103 is dropped, and B2's
	// cell at 101 stays empty.
	want := [][]string{
		{"101", "A1@01", ""},
		{"102", "A1@02", "B2@02"},
	}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Errorf("rows = %v; want %v", ds.Rows, want)
	}
}

func TestMergeWideUnionJoin(t *testing.T) {
	store := newTestStore(t)
	writeVariable(t, store, "A1", 2020, "01", "02")
	writeVariable(t, store, "B2", 2020, "02", "03")

	m := NewMerger(store, utils.NewLogger())
	ds, _, err := m.MergeWide(config.JoinUnion)
	if err != nil {
		t.Fatalf("MergeWide: %v", err)
	}

	want := [][]string{
		{"101", "A1@01", ""},
		{"102", "A1@02", "B2@02"},
		{"103", "", "B2@03"},
	}
	if !reflect.DeepEqual(ds.Rows, want) {
		t.Errorf("rows = %v; want %v", ds.Rows, want)
	}
}

func TestMergeSkipsCorruptFilesAndManifestMatches(t *testing.T) {
	store := newTestStore(t)
	writeVariable(t, store, "A1", 2020, "01")
	writeVariable(t, store, "B2", 2020, "01")
	// A well-named but unreadable file: skipped from dataset and manifest.
	if err := os.WriteFile(filepath.Join(store.Dir(), "C3--2020.parquet"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewMerger(store, utils.NewLogger())

	ds, variables, err := m.MergeLong()
	if err != nil {
		t.Fatalf("MergeLong: %v", err)
	}
	if !reflect.DeepEqual(variables, []string{"A1", "B2"}) {
		t.Errorf("long manifest = %v", variables)
	}
	if len(ds.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(ds.Rows))
	}

	_, variables, err = m.MergeWide(config.JoinFirstVariable)
	if err != nil {
		t.Fatalf("MergeWide: %v", err)
	}
	if !reflect.DeepEqual(variables, []string{"A1", "B2"}) {
		t.Errorf("wide manifest = %v", variables)
	}
}

func TestMergeAbortedOnUnreadableDir(t *testing.T) {
	store := newTestStore(t)
	if err := os.RemoveAll(store.Dir()); err != nil {
		t.Fatal(err)
	}

	m := NewMerger(store, utils.NewLogger())
	if _, _, err := m.MergeLong(); !errors.Is(err, ErrMergeAborted) {
		t.Errorf("MergeLong: expected ErrMergeAborted, got %v", err)
	}
	if _, _, err := m.MergeWide(config.JoinUnion); !errors.Is(err, ErrMergeAborted) {
		t.Errorf("MergeWide: expected ErrMergeAborted, got %v", err)
	}
}

func TestMergeEmptyCache(t *testing.T) {
	store := newTestStore(t)
	m := NewMerger(store, utils.NewLogger())

	ds, variables, err := m.MergeLong()
	if err != nil {
		t.Fatalf("MergeLong: %v", err)
	}
	if len(ds.Rows) != 0 || len(variables) != 0 {
		t.Errorf("expected empty result, got %d rows / %v", len(ds.Rows), variables)
	}
}
