package storage

import "github.com/hans-elliott99/census-ml/models"

// RecordSetStore is the per-variable cache contract shared by the fetch and
// merge phases. *Store satisfies it with a parquet-file directory.
type RecordSetStore interface {
	Exists(key Key) bool
	Write(rs models.VariableRecordSet) error
	List(year int) (map[string]struct{}, []*MalformedEntryError, error)
	ListFiles() ([]string, error)
	Read(name string) (models.VariableRecordSet, error)
}

// DatasetWriter is the interface any consolidated-dataset sink must satisfy.
type DatasetWriter interface {
	Write(ds *models.Dataset) error
	Close() error
}
