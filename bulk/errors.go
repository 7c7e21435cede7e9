package bulk

import "fmt"

// Indices beyond this many are elided from validation messages to keep
// the error readable on large batches.
const maxReportedIndices = 10

// ValidationError is a local precondition failure detected before any
// request is made. The input is wrong; fixing it and retrying is up to
// the caller.
type ValidationError struct {
	Operation Operation
	Field     string
	// Indices holds the first offending record positions, capped at
	// maxReportedIndices. Total is the real count.
	Indices []int
	Total   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s operation requires %q field in all records; missing in %d record(s), first at indices %v",
		e.Operation, e.Field, e.Total, e.Indices)
}

func validateFieldPresent(op Operation, field string, records []Record) error {
	var indices []int
	total := 0

	for i, record := range records {
		if _, ok := record[field]; !ok {
			total++
			if len(indices) < maxReportedIndices {
				indices = append(indices, i)
			}
		}
	}

	if total > 0 {
		return &ValidationError{Operation: op, Field: field, Indices: indices, Total: total}
	}

	return nil
}
