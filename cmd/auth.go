package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kinetic/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate via browser and cache the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := auth.LoadCredentials()
		if err != nil {
			return err
		}
		if creds.ClientID == "" {
			return fmt.Errorf("SF_CLIENT_ID is not set")
		}
		if os.Getenv("SF_LOGIN_URL") == "" {
			creds.LoginURL = cfg.LoginURL
		}

		if err := auth.NewWebAuthenticator(creds, cfg.APIVersion).Login(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Authenticated")
		return nil
	},
}

var authCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the current credentials against the org",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := newSession(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Authenticated against %s (API %s)\n", sess.InstanceURL, sess.APIVersion)
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authCheckCmd)
	rootCmd.AddCommand(authCmd)
}
