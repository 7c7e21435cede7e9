package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kinetic/logger"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect and manage bulk jobs",
}

var jobStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the current state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		client, err := bulkClient(cmd)
		if err != nil {
			return err
		}

		job, err := client.GetJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Job:       %s\n", job.ID)
		fmt.Printf("Operation: %s\n", job.Operation)
		if job.Object != "" {
			fmt.Printf("Object:    %s\n", job.Object)
		}
		fmt.Printf("State:     %s\n", job.State)
		fmt.Printf("Processed: %d\n", job.NumberRecordsProcessed)
		fmt.Printf("Failed:    %d\n", job.NumberRecordsFailed)

		return nil
	},
}

var jobAbortCmd = &cobra.Command{
	Use:   "abort [job-id]",
	Short: "Abort a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		client, err := bulkClient(cmd)
		if err != nil {
			return err
		}

		job, err := client.AbortJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("job %s: %s\n", job.ID, job.State)
		return nil
	},
}

var jobDeleteCmd = &cobra.Command{
	Use:   "delete [job-id]",
	Short: "Delete a finished job from the org",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		client, err := bulkClient(cmd)
		if err != nil {
			return err
		}

		if err := client.DeleteJob(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("job %s deleted\n", args[0])
		return nil
	},
}

func init() {
	jobCmd.AddCommand(jobStatusCmd, jobAbortCmd, jobDeleteCmd)
	rootCmd.AddCommand(jobCmd)
}
