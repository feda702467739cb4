package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hans-elliott99/census-ml/models"
)

// PostgresWriter loads the long-form consolidated dataset into PostgreSQL.
// The wide form's column set changes per run, so only the long form has a
// stable table schema.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS census_features (
			id         SERIAL PRIMARY KEY,
			unique_id  TEXT        NOT NULL,
			variable   TEXT        NOT NULL,
			value      TEXT        NOT NULL DEFAULT '',
			year       INT         NOT NULL,
			geography  TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_census_features_unique_id ON census_features(unique_id);
		CREATE INDEX IF NOT EXISTS idx_census_features_variable  ON census_features(variable);
		CREATE INDEX IF NOT EXISTS idx_census_features_year      ON census_features(year);
	`)
	return err
}

// Clear deletes previously loaded rows for the given year and geography, so
// a re-run replaces rather than appends.
func (pw *PostgresWriter) Clear(year int, geography string) error {
	_, err := pw.db.Exec("DELETE FROM census_features WHERE year = $1 AND geography = $2", year, geography)
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// WriteLong batch-inserts a long-form dataset, clearing the year/geography's
// old rows first.
func (pw *PostgresWriter) WriteLong(ds *models.Dataset, year int, geography string) error {
	if len(ds.Columns) != 3 || ds.Columns[0] != "unique_id" || ds.Columns[1] != "variable" || ds.Columns[2] != "value" {
		return fmt.Errorf("postgres: dataset is not long form (columns: %s)", strings.Join(ds.Columns, ","))
	}
	if len(ds.Rows) == 0 {
		return nil
	}

	if err := pw.Clear(year, geography); err != nil {
		return err
	}

	const batchSize = 500
	for i := 0; i < len(ds.Rows); i += batchSize {
		end := i + batchSize
		if end > len(ds.Rows) {
			end = len(ds.Rows)
		}
		if err := pw.insertBatch(ds.Rows[i:end], year, geography); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch [][]string, year int, geography string) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*5)

	for idx, row := range batch {
		base := idx * 5
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4, base+5))
		valueArgs = append(valueArgs, row[0], row[1], row[2], year, geography)
	}

	query := fmt.Sprintf(`
		INSERT INTO census_features (unique_id, variable, value, year, geography)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	if err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
