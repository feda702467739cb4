package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hans-elliott99/census-ml/models"
)

// CSVWriter writes a consolidated dataset to a CSV file. The header is the
// dataset's column list, which in the wide form is only known at merge time.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	return &CSVWriter{file: f, writer: csv.NewWriter(f)}, nil
}

// Write writes the dataset's header row followed by every data row.
func (c *CSVWriter) Write(ds *models.Dataset) error {
	if err := c.writer.Write(ds.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, row := range ds.Rows {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

// WriteManifest writes the run manifest: one included variable id per line,
// in the order the merge processed them.
func WriteManifest(path string, variables []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("manifest: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: create file %q: %w", path, err)
	}
	for _, v := range variables {
		if _, err := fmt.Fprintln(f, v); err != nil {
			_ = f.Close()
			return fmt.Errorf("manifest: write: %w", err)
		}
	}
	return f.Close()
}
