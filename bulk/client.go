// Package bulk implements a client for the platform's Bulk API v2:
// high-volume ingest (insert, update, upsert, delete, hardDelete) and
// query jobs, driven through the shared create → upload → close → poll
// → fetch-results lifecycle.
package bulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kinetic/poll"
	"kinetic/session"
)

type Client struct {
	sess *session.Session
	poll poll.Config
}

type Option func(*Client)

// WithPollConfig overrides the polling schedule used while waiting for
// jobs to finish.
func WithPollConfig(cfg poll.Config) Option {
	return func(c *Client) { c.poll = cfg }
}

func New(sess *session.Session, opts ...Option) *Client {
	c := &Client{sess: sess, poll: poll.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RunOptions tunes one lifecycle call. The zero value submits the job
// and returns without waiting.
type RunOptions struct {
	// Wait blocks until the job reaches a terminal state and fetches
	// per-record results.
	Wait bool
	// Timeout bounds the wait; non-positive means unlimited.
	Timeout time.Duration
	// OnProgress runs once per status check with the fresh snapshot.
	OnProgress func(Job)
}

func (c *Client) Insert(ctx context.Context, object string, records []Record, opts RunOptions) (*Result, error) {
	return c.runIngest(ctx, OperationInsert, object, records, "", opts)
}

// Update requires every record to carry an Id field; violations fail
// before any request is made.
func (c *Client) Update(ctx context.Context, object string, records []Record, opts RunOptions) (*Result, error) {
	if err := validateFieldPresent(OperationUpdate, "Id", records); err != nil {
		return nil, err
	}

	return c.runIngest(ctx, OperationUpdate, object, records, "", opts)
}

// Upsert matches records to existing rows through externalIDField,
// which every record must carry.
func (c *Client) Upsert(ctx context.Context, object string, records []Record, externalIDField string, opts RunOptions) (*Result, error) {
	if externalIDField == "" {
		return nil, fmt.Errorf("upsert requires an external id field name")
	}
	if err := validateFieldPresent(OperationUpsert, externalIDField, records); err != nil {
		return nil, err
	}

	return c.runIngest(ctx, OperationUpsert, object, records, externalIDField, opts)
}

func (c *Client) Delete(ctx context.Context, object string, ids []string, opts RunOptions) (*Result, error) {
	return c.runIDIngest(ctx, OperationDelete, object, ids, opts)
}

// HardDelete bypasses the recycle bin. The org must grant the Bulk API
// Hard Delete permission.
func (c *Client) HardDelete(ctx context.Context, object string, ids []string, opts RunOptions) (*Result, error) {
	return c.runIDIngest(ctx, OperationHardDelete, object, ids, opts)
}

// Query runs a SOQL export job. Query jobs have no upload phase and a
// single results stream; the call always blocks until the job is done.
func (c *Client) Query(ctx context.Context, soql string, opts RunOptions) (*QueryResult, error) {
	payload := map[string]string{
		"operation": string(OperationQuery),
		"query":     soql,
	}

	job, err := c.createJob(ctx, c.sess.RestURL("jobs", "query"), payload)
	if err != nil {
		return nil, err
	}

	job, err = c.waitForJob(ctx, job.ID, true, opts)
	if err != nil {
		return nil, err
	}

	body, err := c.sess.Do(ctx, http.MethodGet, c.sess.RestURL("jobs", "query", job.ID, "results"), "", nil)
	if err != nil {
		return nil, err
	}

	records, err := UnmarshalRecords(string(body))
	if err != nil {
		return nil, err
	}

	return &QueryResult{Job: job, Records: records}, nil
}

// GetJob fetches a fresh snapshot of an ingest job.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	return c.getJob(ctx, jobID, false)
}

// AbortJob asks the platform to move the job to Aborted. It does not
// wait for the transition beyond this call's own response.
func (c *Client) AbortJob(ctx context.Context, jobID string) (Job, error) {
	return c.patchState(ctx, jobID, StateAborted)
}

// DeleteJob removes a finished or failed job from the org.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	_, err := c.sess.Do(ctx, http.MethodDelete, c.sess.RestURL("jobs", "ingest", jobID), "", nil)
	return err
}

// FetchResults downloads and decodes the success and failure streams
// of a terminal ingest job.
func (c *Client) FetchResults(ctx context.Context, job Job) (*Result, error) {
	success, err := c.fetchRecordStream(ctx, job.ID, "successfulResults")
	if err != nil {
		return nil, err
	}

	failed, err := c.fetchRecordStream(ctx, job.ID, "failedResults")
	if err != nil {
		return nil, err
	}

	errors := make([]RecordError, 0, len(failed))
	for _, record := range failed {
		errors = append(errors, recordErrorFromRow(record))
	}

	return &Result{
		Job:            job,
		SuccessRecords: success,
		FailedRecords:  failed,
		Errors:         errors,
	}, nil
}

func (c *Client) runIngest(ctx context.Context, op Operation, object string, records []Record, externalIDField string, opts RunOptions) (*Result, error) {
	csvData, err := MarshalRecords(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize records: %w", err)
	}

	return c.submitCSV(ctx, op, object, csvData, externalIDField, opts)
}

func (c *Client) runIDIngest(ctx context.Context, op Operation, object string, ids []string, opts RunOptions) (*Result, error) {
	// Id lists have no field-level shape to validate.
	return c.submitCSV(ctx, op, object, MarshalIDs(ids), "", opts)
}

func (c *Client) submitCSV(ctx context.Context, op Operation, object, csvData, externalIDField string, opts RunOptions) (*Result, error) {
	payload := map[string]string{
		"object":      object,
		"operation":   string(op),
		"contentType": "CSV",
		"lineEnding":  "LF",
	}
	if externalIDField != "" {
		payload["externalIdFieldName"] = externalIDField
	}

	job, err := c.createJob(ctx, c.sess.RestURL("jobs", "ingest"), payload)
	if err != nil {
		return nil, err
	}

	if err := c.uploadData(ctx, job.ID, csvData); err != nil {
		return nil, err
	}

	job, err = c.patchState(ctx, job.ID, StateUploadComplete)
	if err != nil {
		return nil, err
	}

	if !opts.Wait {
		return &Result{Job: job}, nil
	}

	job, err = c.waitForJob(ctx, job.ID, false, opts)
	if err != nil {
		return nil, err
	}

	return c.FetchResults(ctx, job)
}

func (c *Client) createJob(ctx context.Context, url string, payload map[string]string) (Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("failed to marshal job request: %w", err)
	}

	respBody, err := c.sess.Do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(body))
	if err != nil {
		return Job{}, err
	}

	return decodeJob(respBody)
}

func (c *Client) uploadData(ctx context.Context, jobID, csvData string) error {
	url := c.sess.RestURL("jobs", "ingest", jobID, "batches")
	_, err := c.sess.Do(ctx, http.MethodPut, url, "text/csv", strings.NewReader(csvData))
	return err
}

func (c *Client) patchState(ctx context.Context, jobID string, state State) (Job, error) {
	body, _ := json.Marshal(map[string]string{"state": string(state)})

	respBody, err := c.sess.Do(ctx, http.MethodPatch, c.sess.RestURL("jobs", "ingest", jobID), "application/json", bytes.NewReader(body))
	if err != nil {
		return Job{}, err
	}

	return decodeJob(respBody)
}

func (c *Client) getJob(ctx context.Context, jobID string, isQuery bool) (Job, error) {
	kind := "ingest"
	if isQuery {
		kind = "query"
	}

	respBody, err := c.sess.Do(ctx, http.MethodGet, c.sess.RestURL("jobs", kind, jobID), "", nil)
	if err != nil {
		return Job{}, err
	}

	return decodeJob(respBody)
}

func (c *Client) waitForJob(ctx context.Context, jobID string, isQuery bool, opts RunOptions) (Job, error) {
	cfg := c.poll
	if opts.Timeout > 0 {
		cfg.Timeout = opts.Timeout
	}

	fetch := func(ctx context.Context) (poll.Status, error) {
		return c.getJob(ctx, jobID, isQuery)
	}

	var onProgress func(poll.Status)
	if opts.OnProgress != nil {
		onProgress = func(s poll.Status) { opts.OnProgress(s.(Job)) }
	}

	status, err := cfg.Poll(ctx, fetch, onProgress)
	if err != nil {
		return Job{}, err
	}

	return status.(Job), nil
}

func (c *Client) fetchRecordStream(ctx context.Context, jobID, stream string) ([]Record, error) {
	body, err := c.sess.Do(ctx, http.MethodGet, c.sess.RestURL("jobs", "ingest", jobID, stream), "", nil)
	if err != nil {
		return nil, err
	}

	return UnmarshalRecords(string(body))
}

func recordErrorFromRow(record Record) RecordError {
	var fields []string
	if raw := record["sf__Fields"]; raw != "" {
		fields = strings.Split(raw, ",")
	}

	statusCode := record["sf__StatusCode"]
	if statusCode == "" {
		statusCode = "UNKNOWN_ERROR"
	}

	return RecordError{
		Fields:     fields,
		Message:    record["sf__Error"],
		StatusCode: statusCode,
	}
}
