package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kinetic/auth"
	"kinetic/config"
	"kinetic/history"
	"kinetic/logger"
	"kinetic/poll"
	"kinetic/session"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "kinetic",
	Short: "Bulk data and metadata toolkit for Salesforce orgs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		// credentials may live in a .env next to the working directory
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		// commands that never touch the run journal skip the db
		clientCmds := map[string]bool{
			"login": true, "check": true,
			"compare": true, "describe": true,
		}
		if !clientCmds[cmd.Name()] {
			if err := history.Init(dbPath()); err != nil {
				return err
			}
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// dbPath anchors a relative db_path under the config directory.
func dbPath() string {
	if filepath.IsAbs(cfg.DBPath) {
		return cfg.DBPath
	}

	dir, err := config.Dir()
	if err != nil {
		return cfg.DBPath
	}

	return filepath.Join(dir, cfg.DBPath)
}

// newSession authenticates with whatever the environment provides,
// falling back to the cached browser-login token.
func newSession(ctx context.Context) (*session.Session, error) {
	creds, err := auth.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if os.Getenv("SF_LOGIN_URL") == "" {
		creds.LoginURL = cfg.LoginURL
	}

	if creds.PrivateKeyPath != "" || (creds.Username != "" && creds.Password != "") {
		a, err := auth.FromCredentials(creds, cfg.APIVersion)
		if err != nil {
			return nil, err
		}
		return a.Authenticate(ctx)
	}

	return auth.NewWebAuthenticator(creds, cfg.APIVersion).Authenticate(ctx)
}

func pollConfig() poll.Config {
	return poll.Config{
		InitialDelay: cfg.Poll.InitialDelay,
		MaxDelay:     cfg.Poll.MaxDelay,
		Backoff:      cfg.Poll.Backoff,
		Timeout:      cfg.Poll.Timeout,
	}
}

func saveRun(run history.Run) {
	if err := history.NewRepository().Save(run); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to record run: %v\n", err)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
