package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kinetic/bulk"
	"kinetic/history"
	"kinetic/logger"
	"kinetic/poll"
)

var (
	bulkExternalID string
	bulkNoWait     bool
	bulkTimeout    time.Duration
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Run bulk data jobs",
}

var bulkInsertCmd = &cobra.Command{
	Use:   "insert [object] [file.csv]",
	Short: "Insert records from a CSV file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulkMutation(cmd, bulk.OperationInsert, args[0], args[1])
	},
}

var bulkUpdateCmd = &cobra.Command{
	Use:   "update [object] [file.csv]",
	Short: "Update records from a CSV file (requires an Id column)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulkMutation(cmd, bulk.OperationUpdate, args[0], args[1])
	},
}

var bulkUpsertCmd = &cobra.Command{
	Use:   "upsert [object] [file.csv]",
	Short: "Upsert records matched through an external id field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bulkExternalID == "" {
			return fmt.Errorf("upsert requires --external-id")
		}
		return runBulkMutation(cmd, bulk.OperationUpsert, args[0], args[1])
	},
}

var bulkDeleteCmd = &cobra.Command{
	Use:   "delete [object] [file.csv]",
	Short: "Delete the records whose Ids are listed in the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulkIDMutation(cmd, bulk.OperationDelete, args[0], args[1])
	},
}

var bulkHardDeleteCmd = &cobra.Command{
	Use:   "harddelete [object] [file.csv]",
	Short: "Permanently delete records, bypassing the recycle bin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulkIDMutation(cmd, bulk.OperationHardDelete, args[0], args[1])
	},
}

func runBulkMutation(cmd *cobra.Command, op bulk.Operation, object, file string) error {
	defer logger.Sync()

	records, err := readRecords(file)
	if err != nil {
		return err
	}

	client, err := bulkClient(cmd)
	if err != nil {
		return err
	}

	opts := runOptions()

	var res *bulk.Result
	ctx := cmd.Context()
	switch op {
	case bulk.OperationInsert:
		res, err = client.Insert(ctx, object, records, opts)
	case bulk.OperationUpdate:
		res, err = client.Update(ctx, object, records, opts)
	case bulk.OperationUpsert:
		res, err = client.Upsert(ctx, object, records, bulkExternalID, opts)
	default:
		return fmt.Errorf("unsupported operation %s", op)
	}

	return reportBulkResult(op, object, res, err)
}

func runBulkIDMutation(cmd *cobra.Command, op bulk.Operation, object, file string) error {
	defer logger.Sync()

	ids, err := readIDs(file)
	if err != nil {
		return err
	}

	client, err := bulkClient(cmd)
	if err != nil {
		return err
	}

	opts := runOptions()

	var res *bulk.Result
	if op == bulk.OperationHardDelete {
		res, err = client.HardDelete(cmd.Context(), object, ids, opts)
	} else {
		res, err = client.Delete(cmd.Context(), object, ids, opts)
	}

	return reportBulkResult(op, object, res, err)
}

func bulkClient(cmd *cobra.Command) (*bulk.Client, error) {
	sess, err := newSession(cmd.Context())
	if err != nil {
		return nil, err
	}

	return bulk.New(sess, bulk.WithPollConfig(pollConfig())), nil
}

func runOptions() bulk.RunOptions {
	return bulk.RunOptions{
		Wait:    !bulkNoWait,
		Timeout: bulkTimeout,
		OnProgress: func(j bulk.Job) {
			fmt.Printf("job %s: %s (%d processed, %d failed)\n",
				j.ID, j.State, j.NumberRecordsProcessed, j.NumberRecordsFailed)
		},
	}
}

func readRecords(file string) ([]bulk.Record, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	records, err := bulk.UnmarshalRecords(string(data))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s contains no records", file)
	}

	return records, nil
}

func readIDs(file string) ([]string, error) {
	records, err := readRecords(file)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for i, record := range records {
		id, ok := record["Id"]
		if !ok {
			return nil, fmt.Errorf("record %d has no Id", i)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func reportBulkResult(op bulk.Operation, object string, res *bulk.Result, err error) error {
	if err != nil {
		saveRun(history.Run{
			JobID:     jobIDOf(err),
			Kind:      "bulk",
			Operation: string(op),
			Object:    object,
			Status:    history.StatusFailed,
			State:     stateOf(err),
			ErrMsg:    err.Error(),
		})
		return err
	}

	if !bulkNoWait {
		fmt.Printf("%s %s: %d succeeded, %d failed (%.1f%%)\n",
			op, object, res.SuccessCount(), res.FailedCount(), res.SuccessRate())

		for _, recordErr := range res.Errors {
			fmt.Printf("  ✗ [%s] %s\n", recordErr.StatusCode, recordErr.Message)
		}
	} else {
		fmt.Printf("%s %s: job %s submitted (state %s)\n", op, object, res.Job.ID, res.Job.State)
	}

	status := history.StatusSuccess
	if res.FailedCount() > 0 {
		status = history.StatusFailed
	}
	saveRun(history.Run{
		JobID:     res.Job.ID,
		Kind:      "bulk",
		Operation: string(op),
		Object:    object,
		Status:    status,
		State:     string(res.Job.State),
		Processed: res.TotalRecords(),
		Failed:    res.FailedCount(),
	})

	logger.Log.Info("bulk run finished",
		zap.String("operation", string(op)),
		zap.String("object", object),
		zap.String("job", res.Job.ID))

	return nil
}

// stateOf pulls the terminal state out of a polling error, when there
// is one to show.
func stateOf(err error) string {
	var failedErr *poll.JobFailedError
	if errors.As(err, &failedErr) {
		return failedErr.State
	}

	var timeoutErr *poll.TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.State
	}

	return ""
}

func jobIDOf(err error) string {
	var failedErr *poll.JobFailedError
	if errors.As(err, &failedErr) {
		return failedErr.JobID
	}

	var abortedErr *poll.JobAbortedError
	if errors.As(err, &abortedErr) {
		return abortedErr.JobID
	}

	var timeoutErr *poll.TimeoutError
	if errors.As(err, &timeoutErr) {
		return timeoutErr.JobID
	}

	return ""
}

func init() {
	for _, c := range []*cobra.Command{bulkInsertCmd, bulkUpdateCmd, bulkUpsertCmd, bulkDeleteCmd, bulkHardDeleteCmd} {
		c.Flags().BoolVar(&bulkNoWait, "no-wait", false, "Submit the job without waiting for results")
		c.Flags().DurationVar(&bulkTimeout, "timeout", 0, "Maximum time to wait for the job")
	}
	bulkUpsertCmd.Flags().StringVar(&bulkExternalID, "external-id", "", "External id field used to match records")

	bulkCmd.AddCommand(bulkInsertCmd, bulkUpdateCmd, bulkUpsertCmd, bulkDeleteCmd, bulkHardDeleteCmd)
	rootCmd.AddCommand(bulkCmd)
}
