package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"telecopy/internal/session"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login [phone]",
	Short: "Store the session credential for a phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phone := args[0]

		token := loginToken
		if token == "" {
			// Dev-server tokens encode the phone directly.
			token = "dev-" + phone
		}

		store, err := session.Open(cfg.SessionPath)
		if err != nil {
			return err
		}
		if err := store.Save(session.Session{Phone: phone, Token: token}); err != nil {
			return err
		}

		fmt.Printf("logged in as %s\n", phone)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginToken, "token", "", "bearer token (defaults to a dev-server token)")
	rootCmd.AddCommand(loginCmd)
}
