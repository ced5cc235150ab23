// Package ingest builds canonical datasets from uploaded files and remote
// historical responses.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backdesk/internal/logger"
	"backdesk/internal/market"
	"backdesk/internal/normalize"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

var log = logger.Named("ingest")

const payloadSchema = `{
  "type": "object",
  "required": ["data"],
  "properties": {
    "data": {"type": "array"},
    "ticker": {"type": "string"},
    "startDate": {"type": "string"},
    "endDate": {"type": "string"},
    "interval": {"type": "string"}
  }
}`

var compiledPayloadSchema = mustCompile(payloadSchema)

func mustCompile(raw string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("payload.json", strings.NewReader(raw)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("payload.json")
}

// Meta is the optional descriptive part of a dataset payload.
type Meta struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Interval  string `json:"interval"`
}

// Load is the outcome of ingesting one payload. Dropped counts records that
// were rejected individually.
type Load struct {
	Dataset *market.Dataset
	Dropped int
}

// ParseUpload ingests an uploaded file body of shape
// {data: [...], ticker?, startDate?, endDate?, interval?}.
func ParseUpload(raw []byte) (*Load, error) {
	return parsePayload(raw, "upload")
}

// FromHistorical ingests the body of a successful historical fetch.
func FromHistorical(raw []byte) (*Load, error) {
	return parsePayload(raw, "historical response")
}

func parsePayload(raw []byte, source string) (*Load, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, invalid("data", "%s is empty", source)
	}
	if !gjson.ValidBytes(raw) {
		return nil, invalid("data", "%s is not valid JSON", source)
	}
	if !gjson.GetBytes(raw, "data").IsArray() {
		return nil, invalid("data", "%s must contain a \"data\" array", source)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("data", "%s: %v", source, err)
	}
	if err := compiledPayloadSchema.Validate(doc); err != nil {
		return nil, invalid("data", "%s has an unexpected shape: %v", source, schemaReason(err))
	}

	obj := doc.(map[string]any)
	meta := Meta{
		Ticker:    stringField(obj, "ticker"),
		StartDate: stringField(obj, "startDate"),
		EndDate:   stringField(obj, "endDate"),
		Interval:  stringField(obj, "interval"),
	}
	items := obj["data"].([]any)
	rows := make([]map[string]any, 0, len(items))
	var nonObjects int
	for _, item := range items {
		row, ok := item.(map[string]any)
		if !ok {
			nonObjects++
			continue
		}
		rows = append(rows, row)
	}
	if nonObjects > 0 && len(rows) == 0 {
		return nil, &InputValidationError{Field: "data", Reason: fmt.Sprintf("%s: none of the %d data entries is an object", source, nonObjects)}
	}
	load, err := FromRecords(meta, rows)
	if err != nil {
		return nil, err
	}
	if nonObjects > 0 {
		log.Warnf("%s: dropped %d non-object data entries", source, nonObjects)
		load.Dropped += nonObjects
	}
	return load, nil
}

// FromRecords normalizes rows one by one. A record without a usable date is
// dropped and logged; if every record is dropped the load fails with the
// first DataShapeError.
func FromRecords(meta Meta, rows []map[string]any) (*Load, error) {
	if len(rows) == 0 {
		return nil, invalid("data", "no records")
	}
	records := make([]market.OHLCVRecord, 0, len(rows))
	var firstErr error
	dropped := 0
	for i, row := range rows {
		rec, err := normalize.Normalize(row)
		if err != nil {
			var shapeErr *normalize.DataShapeError
			if !errors.As(err, &shapeErr) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			dropped++
			log.Warnf("dropping record %d: %v", i, err)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no record could be normalized (%d rejected): %w", dropped, firstErr)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	ds := &market.Dataset{
		Ticker:    strings.ToUpper(strings.TrimSpace(meta.Ticker)),
		StartDate: strings.TrimSpace(meta.StartDate),
		EndDate:   strings.TrimSpace(meta.EndDate),
		Interval:  strings.TrimSpace(meta.Interval),
		Records:   records,
	}
	if err := checkSpan(ds); err != nil {
		return nil, err
	}
	return &Load{Dataset: ds, Dropped: dropped}, nil
}

// checkSpan rejects declared dates that contradict each other or the records.
func checkSpan(ds *market.Dataset) error {
	first, last, _ := ds.Span()
	tol := spanTolerance(ds.Interval)

	startTS, hasStart, err := declaredDate("startDate", ds.StartDate)
	if err != nil {
		return err
	}
	endTS, hasEnd, err := declaredDate("endDate", ds.EndDate)
	if err != nil {
		return err
	}
	if hasStart && hasEnd && startTS.After(endTS) {
		return invalid("startDate", "start date %s is after end date %s", ds.StartDate, ds.EndDate)
	}
	if hasStart && first.Before(startTS.Add(-tol)) {
		return invalid("startDate", "first record %s precedes start date %s", first.Format(dateLayout), ds.StartDate)
	}
	if hasEnd && last.After(endTS.Add(tol)) {
		return invalid("endDate", "last record %s follows end date %s", last.Format(dateLayout), ds.EndDate)
	}
	return nil
}

func declaredDate(field, value string) (time.Time, bool, error) {
	if value == "" {
		return time.Time{}, false, nil
	}
	ts, ok := normalize.ParseTimestamp(value)
	if !ok {
		return time.Time{}, false, invalid(field, "unrecognised date %q", value)
	}
	return ts, true, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func schemaReason(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if leaf.InstanceLocation != "" {
			return fmt.Sprintf("%s %s", leaf.InstanceLocation, leaf.Message)
		}
		return leaf.Message
	}
	return err.Error()
}
