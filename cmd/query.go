package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kinetic/bulk"
	"kinetic/history"
	"kinetic/logger"
)

var (
	queryOutput  string
	queryTimeout time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query [soql]",
	Short: "Run a SOQL query as a bulk export job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		soql := args[0]

		client, err := bulkClient(cmd)
		if err != nil {
			return err
		}

		opts := bulk.RunOptions{
			Wait:    true,
			Timeout: queryTimeout,
			OnProgress: func(j bulk.Job) {
				fmt.Printf("job %s: %s\n", j.ID, j.State)
			},
		}

		res, err := client.Query(cmd.Context(), soql, opts)
		if err != nil {
			saveRun(history.Run{
				JobID:     jobIDOf(err),
				Kind:      "query",
				Operation: string(bulk.OperationQuery),
				Status:    history.StatusFailed,
				State:     stateOf(err),
				ErrMsg:    err.Error(),
			})
			return err
		}

		csvData, err := bulk.MarshalRecords(res.Records)
		if err != nil {
			return err
		}

		if queryOutput != "" {
			if err := os.WriteFile(queryOutput, []byte(csvData), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", queryOutput, err)
			}
			fmt.Printf("wrote %d records to %s\n", res.RecordCount(), queryOutput)
		} else {
			fmt.Print(csvData)
			fmt.Printf("%d records\n", res.RecordCount())
		}

		saveRun(history.Run{
			JobID:     res.Job.ID,
			Kind:      "query",
			Operation: string(bulk.OperationQuery),
			Status:    history.StatusSuccess,
			State:     string(res.Job.State),
			Processed: res.RecordCount(),
		})

		return nil
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write results to a CSV file instead of stdout")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Maximum time to wait for the job")

	rootCmd.AddCommand(queryCmd)
}
