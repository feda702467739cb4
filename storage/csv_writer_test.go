package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hans-elliott99/census-ml/models"
)

func TestCSVWriterWritesDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "census_features_2021_tract.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}

	ds := &models.Dataset{
		Columns: []string{"unique_id", "variable", "value"},
		Rows: [][]string{
			{"17051", "B01001_001E", "1234"},
			{"17052", "B01001_001E", ""},
		},
	}
	if err := w.Write(ds); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	if !reflect.DeepEqual(records[0], ds.Columns) {
		t.Errorf("header = %v", records[0])
	}
	if !reflect.DeepEqual(records[2], ds.Rows[1]) {
		t.Errorf("row 2 = %v", records[2])
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "census_variables_2021_tract.txt")

	if err := WriteManifest(path, []string{"B01001_001E", "B19013_001E"}); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "B01001_001E\nB19013_001E\n"
	if string(raw) != want {
		t.Errorf("manifest = %q; want %q", raw, want)
	}
}
