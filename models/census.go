package models

// VariableDescriptor describes one ACS variable as published in the
// reference table: its stable code, human-readable label, and declared
// scalar type.
type VariableDescriptor struct {
	ID    string
	Label string
	Type  string
}

// NumericVariables filters descriptors down to int/float typed entries and
// drops duplicate ids, preserving first-seen order. Only numeric variables
// are eligible for the bulk download.
func NumericVariables(descs []VariableDescriptor) []VariableDescriptor {
	seen := make(map[string]struct{}, len(descs))
	result := make([]VariableDescriptor, 0, len(descs))

	for _, d := range descs {
		if d.Type != "int" && d.Type != "float" {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		result = append(result, d)
	}
	return result
}

// GeoRecord is one row of a cached variable: the variable's value at a
// single geography unit. It is also the parquet row schema of cache files.
// Values are kept in their raw string form as returned by the API.
type GeoRecord struct {
	State  string `parquet:"state"`
	SubGeo string `parquet:"sub_geo"`
	Year   int    `parquet:"year"`
	Descr  string `parquet:"descr"`
	Value  string `parquet:"value"`
}

// UniqueID is the nation-wide geography join key: the state code
// concatenated with the sub-geography code. It must come out identical no
// matter which variable produced the row, so it can join across caches.
func (r GeoRecord) UniqueID() string {
	return r.State + r.SubGeo
}

// VariableRecordSet is one unit of cached work: every geography row fetched
// for a single variable in a single year. Written once, never mutated;
// a re-fetch replaces the cache entry wholesale.
type VariableRecordSet struct {
	VariableID string
	Year       int
	Descr      string
	Rows       []GeoRecord
}

// Dataset is a consolidated table with a run-dependent column set (the wide
// form grows one column per variable). All cells are strings.
type Dataset struct {
	Columns []string
	Rows    [][]string
}

// VariableFailure records one variable that could not be fetched or cached
// during a scrape run.
type VariableFailure struct {
	VariableID string
	Err        error
}

// BatchReport summarizes a scrape run. Failed variables stay un-cached and
// are retried on the next run via the completion scan.
type BatchReport struct {
	Succeeded []string
	Failed    []VariableFailure
}
