package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"kinetic/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := history.NewRepository()

		runs, err := repo.GetRecent(historyLimit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}

		for _, run := range runs {
			printRun(run)
		}

		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		fmt.Printf("\n%d runs, %d succeeded, %d failed\n", stats.Total, stats.Success, stats.Failed)

		return nil
	},
}

var historyFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Show only failed runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := history.NewRepository()

		runs, err := repo.GetFailed()
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("no failed runs")
			return nil
		}

		for _, run := range runs {
			printRun(run)
			if run.ErrMsg != "" {
				fmt.Printf("    %s\n", run.ErrMsg)
			}
		}

		return nil
	},
}

func printRun(run history.Run) {
	status := "✓"
	if run.Status == history.StatusFailed {
		status = "✗"
	}

	what := run.Operation
	if run.Object != "" {
		what = fmt.Sprintf("%s %s", run.Operation, run.Object)
	}

	fmt.Printf("%s [%s] %-10s %-30s %d processed, %d failed\n",
		status, run.RanAt.Format("2006-01-02 15:04:05"), run.Kind, what, run.Processed, run.Failed)
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")

	historyCmd.AddCommand(historyFailedCmd)
	rootCmd.AddCommand(historyCmd)
}
