package bulk

import (
	"encoding/json"
	"fmt"

	"kinetic/session"
)

// State is a Bulk API v2 job lifecycle state. Open is the only initial
// state; JobComplete, Failed and Aborted are terminal.
type State string

const (
	StateOpen           State = "Open"
	StateUploadComplete State = "UploadComplete"
	StateInProgress     State = "InProgress"
	StateJobComplete    State = "JobComplete"
	StateFailed         State = "Failed"
	StateAborted        State = "Aborted"
)

var states = map[State]bool{
	StateOpen:           true,
	StateUploadComplete: true,
	StateInProgress:     true,
	StateJobComplete:    true,
	StateFailed:         true,
	StateAborted:        true,
}

func ParseState(s string) (State, error) {
	st := State(s)
	if !states[st] {
		return "", fmt.Errorf("unknown bulk job state %q", s)
	}

	return st, nil
}

// Job is an immutable snapshot of a remote bulk job. Every status
// check produces a fresh snapshot; nothing mutates one in place.
type Job struct {
	ID                  string
	Operation           Operation
	Object              string
	State               State
	CreatedDate         string
	SystemModstamp      string
	ExternalIDFieldName string
	ConcurrencyMode     string
	ContentType         string
	APIVersion          float64

	NumberRecordsProcessed int
	NumberRecordsFailed    int
	TotalProcessingTime    int
	ErrorMessage           string
}

func (j Job) JobRef() string    { return j.ID }
func (j Job) StateName() string { return string(j.State) }

func (j Job) Terminal() bool {
	return j.State == StateJobComplete || j.State == StateFailed || j.State == StateAborted
}

func (j Job) Succeeded() bool { return j.State == StateJobComplete }
func (j Job) Aborted() bool   { return j.State == StateAborted }

func (j Job) SuccessCount() int {
	return j.NumberRecordsProcessed - j.NumberRecordsFailed
}

type jobPayload struct {
	ID                  string  `json:"id"`
	Operation           string  `json:"operation"`
	Object              string  `json:"object"`
	State               string  `json:"state"`
	CreatedDate         string  `json:"createdDate"`
	SystemModstamp      string  `json:"systemModstamp"`
	ExternalIDFieldName string  `json:"externalIdFieldName"`
	ConcurrencyMode     string  `json:"concurrencyMode"`
	ContentType         string  `json:"contentType"`
	APIVersion          float64 `json:"apiVersion"`

	NumberRecordsProcessed int    `json:"numberRecordsProcessed"`
	NumberRecordsFailed    int    `json:"numberRecordsFailed"`
	TotalProcessingTime    int    `json:"totalProcessingTime"`
	ErrorMessage           string `json:"errorMessage"`
}

// decodeJob parses a job response, failing fast on anything the rest
// of the lifecycle depends on instead of propagating partial data.
func decodeJob(body []byte) (Job, error) {
	var p jobPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Job{}, &session.DecodeError{What: "bulk job response", Err: err}
	}

	if p.ID == "" {
		return Job{}, &session.DecodeError{What: "bulk job response", Err: fmt.Errorf("missing id")}
	}

	// Query jobs omit the object field; everything else must carry it.
	op, err := ParseOperation(p.Operation)
	if err != nil {
		return Job{}, &session.DecodeError{What: "bulk job response", Err: err}
	}
	if p.Object == "" && !op.IsQuery() {
		return Job{}, &session.DecodeError{What: "bulk job response", Err: fmt.Errorf("missing object")}
	}

	state, err := ParseState(p.State)
	if err != nil {
		return Job{}, &session.DecodeError{What: "bulk job response", Err: err}
	}

	return Job{
		ID:                  p.ID,
		Operation:           op,
		Object:              p.Object,
		State:               state,
		CreatedDate:         p.CreatedDate,
		SystemModstamp:      p.SystemModstamp,
		ExternalIDFieldName: p.ExternalIDFieldName,
		ConcurrencyMode:     p.ConcurrencyMode,
		ContentType:         p.ContentType,
		APIVersion:          p.APIVersion,

		NumberRecordsProcessed: p.NumberRecordsProcessed,
		NumberRecordsFailed:    p.NumberRecordsFailed,
		TotalProcessingTime:    p.TotalProcessingTime,
		ErrorMessage:           p.ErrorMessage,
	}, nil
}

// RecordError is the per-record failure detail the platform attaches
// to rows in the failed-results stream.
type RecordError struct {
	Fields     []string
	Message    string
	StatusCode string
}

// Result is the outcome of a completed mutation job. Counts are always
// derived from the record lists so they cannot drift.
type Result struct {
	Job            Job
	SuccessRecords []Record
	FailedRecords  []Record
	Errors         []RecordError
}

func (r *Result) SuccessCount() int { return len(r.SuccessRecords) }
func (r *Result) FailedCount() int  { return len(r.FailedRecords) }
func (r *Result) TotalRecords() int { return r.SuccessCount() + r.FailedCount() }

// SuccessRate is a percentage between 0 and 100.
func (r *Result) SuccessRate() float64 {
	total := r.TotalRecords()
	if total == 0 {
		return 0
	}

	return float64(r.SuccessCount()) / float64(total) * 100
}

// Successful reports whether no record failed. Partial success is not
// an error; callers decide what it means for them.
func (r *Result) Successful() bool { return r.FailedCount() == 0 }

// QueryResult is the outcome of a completed query job.
type QueryResult struct {
	Job     Job
	Records []Record
	Locator string
}

func (r *QueryResult) RecordCount() int { return len(r.Records) }
func (r *QueryResult) HasMore() bool    { return r.Locator != "" }
