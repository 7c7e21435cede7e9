package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kinetic/history"
	"kinetic/logger"
	"kinetic/metadata"
	"kinetic/watch"
)

var (
	metaTypes      []string
	metaMembers    []string
	metaCheckOnly  bool
	metaRunTests   bool
	metaNoRollback bool
	metaTimeout    time.Duration
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Retrieve, deploy and compare org metadata",
}

var metaRetrieveCmd = &cobra.Command{
	Use:   "retrieve [output-dir]",
	Short: "Retrieve metadata components into a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		if len(metaTypes) == 0 && len(metaMembers) == 0 {
			return fmt.Errorf("retrieve requires at least one --type or --member")
		}

		components, err := parseMembers(metaMembers)
		if err != nil {
			return err
		}

		client, err := metaClient(cmd)
		if err != nil {
			return err
		}

		opts := metadata.RetrieveOptions{
			Components: components,
			Timeout:    metaTimeout,
			OnProgress: printState,
		}

		res, err := client.Retrieve(cmd.Context(), metaTypes, args[0], opts)
		if err != nil {
			if res != nil {
				saveMetaRun("retrieve", res.ID, err)
				for _, msg := range res.Messages {
					fmt.Printf("  ✗ %s\n", msg)
				}
			} else {
				saveMetaRun("retrieve", "", err)
			}
			return err
		}
		saveMetaRun("retrieve", res.ID, nil)

		fmt.Printf("retrieved %d files to %s\n", res.FileCount(), args[0])
		return nil
	},
}

var metaDeployCmd = &cobra.Command{
	Use:   "deploy [source-dir]",
	Short: "Deploy a metadata directory to the org",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		client, err := metaClient(cmd)
		if err != nil {
			return err
		}

		res, err := client.Deploy(cmd.Context(), args[0], deployOptions())
		if err != nil {
			reportDeployFailure(res, err)
			return err
		}
		saveMetaRun("deploy", res.ID, nil)

		verb := "deployed"
		if metaCheckOnly {
			verb = "validated"
		}
		fmt.Printf("%s %d components\n", verb, res.SuccessCount())
		return nil
	},
}

var metaCompareCmd = &cobra.Command{
	Use:   "compare [source-dir] [target-dir]",
	Short: "Compare a local metadata tree against another tree or the org",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		targetDir := ""
		if len(args) == 2 {
			targetDir = args[1]
		}

		client, err := metaClient(cmd)
		if err != nil {
			return err
		}

		diff, err := client.Compare(cmd.Context(), args[0], targetDir)
		if err != nil {
			return err
		}

		if !diff.HasChanges() {
			fmt.Println("no differences")
			return nil
		}

		for _, c := range diff.Added {
			fmt.Printf("  + %s\n", c.Key())
		}
		for _, c := range diff.Modified {
			fmt.Printf("  ~ %s\n", c.Key())
		}
		for _, c := range diff.Deleted {
			fmt.Printf("  - %s\n", c.Key())
		}
		fmt.Printf("%d added, %d modified, %d deleted, %d unchanged\n",
			len(diff.Added), len(diff.Modified), len(diff.Deleted), len(diff.Unchanged))

		return nil
	},
}

var metaDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "List the metadata types the org supports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		client, err := metaClient(cmd)
		if err != nil {
			return err
		}

		res, err := client.DescribeMetadata(cmd.Context())
		if err != nil {
			return err
		}

		for _, obj := range res.MetadataObjects {
			fmt.Printf("%-40s %s\n", obj.TypeName, obj.DirectoryName)
		}
		fmt.Printf("%d metadata types\n", len(res.MetadataObjects))

		return nil
	},
}

var metaWatchCmd = &cobra.Command{
	Use:   "watch [source-dir]",
	Short: "Watch a metadata directory and validate it on every change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		dir := args[0]

		client, err := metaClient(cmd)
		if err != nil {
			return err
		}

		watcher, err := watch.New(100)
		if err != nil {
			return err
		}
		if err := watcher.Watch(dir); err != nil {
			return err
		}
		defer watcher.Stop()

		events := watch.Debounce(watch.FilterMetadata(watcher.Events()), cfg.WatchDebounce)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		fmt.Printf("watching %s, press Ctrl+C to stop\n", dir)

		opts := deployOptions()
		opts.CheckOnly = true

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				fmt.Printf("change detected: %s\n", event.Path)

				res, err := client.Deploy(cmd.Context(), dir, opts)
				if err != nil {
					logger.Log.Warn("validation failed", zap.Error(err))
					reportDeployFailure(res, err)
					continue
				}
				saveMetaRun("deploy", res.ID, nil)
				fmt.Printf("  ✓ %d components valid\n", res.SuccessCount())
			case <-sigCh:
				fmt.Println("stopping")
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		}
	},
}

func metaClient(cmd *cobra.Command) (*metadata.Client, error) {
	sess, err := newSession(cmd.Context())
	if err != nil {
		return nil, err
	}

	return metadata.New(sess, metadata.WithPollConfig(pollConfig())), nil
}

func deployOptions() metadata.DeployOptions {
	return metadata.DeployOptions{
		CheckOnly:  metaCheckOnly,
		RunTests:   metaRunTests,
		NoRollback: metaNoRollback,
		Timeout:    metaTimeout,
		OnProgress: printState,
	}
}

func printState(state string) {
	fmt.Printf("  %s\n", state)
}

// parseMembers turns repeated Type:Member flags into the member map
// the retrieve manifest expects.
func parseMembers(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	members := make(map[string][]string)
	for _, pair := range pairs {
		componentType, member, ok := strings.Cut(pair, ":")
		if !ok || componentType == "" || member == "" {
			return nil, fmt.Errorf("invalid member %q, expected Type:Member", pair)
		}
		members[componentType] = append(members[componentType], member)
	}

	return members, nil
}

func reportDeployFailure(res *metadata.DeployResult, err error) {
	if res == nil {
		saveMetaRun("deploy", "", err)
		return
	}

	saveMetaRun("deploy", res.ID, err)
	for _, failure := range res.Failures {
		fmt.Printf("  ✗ %s: %s\n", failure.FullName, failure.Problem)
	}
}

func saveMetaRun(operation, asyncID string, err error) {
	run := history.Run{
		JobID:     asyncID,
		Kind:      operation,
		Operation: operation,
		Status:    history.StatusSuccess,
	}
	if err != nil {
		run.Status = history.StatusFailed
		run.State = stateOf(err)
		run.ErrMsg = err.Error()
	}
	saveRun(run)
}

func init() {
	metaRetrieveCmd.Flags().StringSliceVarP(&metaTypes, "type", "t", nil, "Component types to retrieve with the wildcard")
	metaRetrieveCmd.Flags().StringSliceVarP(&metaMembers, "member", "m", nil, "Specific members as Type:Member, repeatable")
	metaRetrieveCmd.Flags().DurationVar(&metaTimeout, "timeout", 0, "Maximum time to wait for the operation")

	for _, c := range []*cobra.Command{metaDeployCmd, metaWatchCmd} {
		c.Flags().BoolVar(&metaRunTests, "run-tests", false, "Run org tests as part of the deploy")
		c.Flags().DurationVar(&metaTimeout, "timeout", 0, "Maximum time to wait for the operation")
	}
	metaDeployCmd.Flags().BoolVar(&metaCheckOnly, "check-only", false, "Validate without applying")
	metaDeployCmd.Flags().BoolVar(&metaNoRollback, "no-rollback", false, "Keep applied components when others fail")

	metaCmd.AddCommand(metaRetrieveCmd, metaDeployCmd, metaCompareCmd, metaDescribeCmd, metaWatchCmd)
	rootCmd.AddCommand(metaCmd)
}
