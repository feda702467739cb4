// Package census queries the ACS 5-year data API: one request per variable,
// covering every geography unit of the configured level.
package census

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hans-elliott99/census-ml/models"
)

// AllStateFIPS enumerates every state-level FIPS code (50 states plus DC).
// The API's "*" wildcard is not honored below state granularity, so
// sub-state queries must spell out the states they cover.
var AllStateFIPS = []string{
	"17", "18", "19", "13", "20", "05", "06", "15", "16", "41", "51",
	"28", "42", "29", "53", "47", "44", "45", "46", "08", "10",
	"11", "09", "36", "37", "56", "48", "12", "38", "39", "21", "22",
	"23", "24", "25", "26", "27", "01", "02", "04", "40", "54", "55",
	"50", "49", "30", "31", "32", "33", "34", "35",
}

// QueryError reports a failed remote lookup for a single variable. One
// variable failing never aborts the batch; the variable simply stays
// un-cached and is picked up again on the next run.
type QueryError struct {
	VariableID string
	Year       int
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("census: query %s (%d): %v", e.VariableID, e.Year, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Client is an ACS 5-year data API client.
type Client struct {
	http   *resty.Client
	apiKey string
	states string
}

// NewClient creates a Client against baseURL with a bounded per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Client{
		http:   client,
		apiKey: apiKey,
		states: strings.Join(AllStateFIPS, ","),
	}
}

// FetchVariable retrieves one variable's value at every unit of the given
// geography level across all states, normalized into a record set with one
// row per geography unit. No retries are attempted: a failure leaves the
// variable for the next run.
func (c *Client) FetchVariable(ctx context.Context, id string, year int, descr, geography string) (models.VariableRecordSet, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"get": id,
			"for": geography + ":*",
			"in":  "state:" + c.states,
			"key": c.apiKey,
		}).
		Get(fmt.Sprintf("/data/%d/acs/acs5", year))
	if err != nil {
		return models.VariableRecordSet{}, &QueryError{VariableID: id, Year: year, Err: err}
	}
	if res.IsError() {
		return models.VariableRecordSet{}, &QueryError{
			VariableID: id,
			Year:       year,
			Err:        fmt.Errorf("status %s: %s", res.Status(), strings.TrimSpace(string(res.Body()))),
		}
	}

	rows, err := normalizeRows(res.Body(), id, geography, year, descr)
	if err != nil {
		return models.VariableRecordSet{}, &QueryError{VariableID: id, Year: year, Err: err}
	}

	return models.VariableRecordSet{
		VariableID: id,
		Year:       year,
		Descr:      descr,
		Rows:       rows,
	}, nil
}

// normalizeRows reshapes the API's array-of-arrays JSON (header row first,
// e.g. [["B01001_001E","state","county","tract"], ["1234","01","001","020100"], ...])
// into GeoRecords keyed by state and sub-geography code. Extra columns such
// as county in tract-level responses are ignored.
func normalizeRows(body []byte, id, geography string, year int, descr string) ([]models.GeoRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var table [][]any
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	valueIdx, stateIdx, geoIdx := -1, -1, -1
	for i, cell := range table[0] {
		switch cellString(cell) {
		case id:
			valueIdx = i
		case "state":
			stateIdx = i
		case geography:
			geoIdx = i
		}
	}
	if valueIdx < 0 || stateIdx < 0 || geoIdx < 0 {
		return nil, fmt.Errorf("response header missing %q, %q or %q column", id, "state", geography)
	}

	records := make([]models.GeoRecord, 0, len(table)-1)
	for _, row := range table[1:] {
		if len(row) <= valueIdx || len(row) <= stateIdx || len(row) <= geoIdx {
			return nil, fmt.Errorf("response row shorter than header")
		}
		records = append(records, models.GeoRecord{
			State:  cellString(row[stateIdx]),
			SubGeo: cellString(row[geoIdx]),
			Year:   year,
			Descr:  descr,
			Value:  cellString(row[valueIdx]),
		})
	}
	return records, nil
}

// cellString renders one JSON cell. The API mixes strings, numbers and
// nulls; numbers keep their exact wire form via json.Number.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
