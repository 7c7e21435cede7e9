package bulk

import (
	"encoding/csv"
	"io"
	"sort"
	"strings"

	"kinetic/session"
)

// Record is one row of data keyed by field API name. Values stay
// strings end to end; the platform does its own typing.
type Record map[string]string

// MarshalRecords renders records as the CSV the ingest endpoint
// expects: one header row over the union of all field names, sorted
// alphabetically except that Id always leads, then one row per record
// with empty cells for missing fields. Lines end with a single \n on
// every platform. Empty input yields an empty string.
func MarshalRecords(records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	fieldSet := make(map[string]bool)
	for _, record := range records {
		for name := range record {
			fieldSet[name] = true
		}
	}

	fields := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		if name != "Id" {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)

	if fieldSet["Id"] {
		fields = append([]string{"Id"}, fields...)
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write(fields); err != nil {
		return "", err
	}

	row := make([]string, len(fields))
	for _, record := range records {
		for i, name := range fields {
			row[i] = record[name]
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	return sb.String(), w.Error()
}

// UnmarshalRecords parses a header-led CSV blob. Empty cells are
// dropped from their record rather than kept as empty strings, and a
// record left with no fields is dropped entirely, so the round trip is
// deliberately lossy for empty values.
func UnmarshalRecords(data string) ([]Record, error) {
	if strings.TrimSpace(data) == "" {
		return []Record{}, nil
	}

	r := csv.NewReader(strings.NewReader(data))

	header, err := r.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, &session.DecodeError{What: "csv header", Err: err}
	}

	var records []Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &session.DecodeError{What: "csv row", Err: err}
		}

		record := make(Record)
		for i, value := range row {
			if i < len(header) && value != "" {
				record[header[i]] = value
			}
		}

		if len(record) > 0 {
			records = append(records, record)
		}
	}

	if records == nil {
		records = []Record{}
	}

	return records, nil
}

// MarshalIDs renders a flat list of record ids as a single-column CSV
// with the literal header Id, preserving input order.
func MarshalIDs(ids []string) string {
	if len(ids) == 0 {
		return ""
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write([]string{"Id"})
	for _, id := range ids {
		_ = w.Write([]string{id})
	}

	w.Flush()
	return sb.String()
}

// ValidCSV reports whether data parses as CSV with a header row and at
// least one data row.
func ValidCSV(data string) bool {
	if strings.TrimSpace(data) == "" {
		return false
	}

	r := csv.NewReader(strings.NewReader(data))

	header, err := r.Read()
	if err != nil || len(header) == 0 {
		return false
	}

	first, err := r.Read()
	return err == nil && len(first) > 0
}
