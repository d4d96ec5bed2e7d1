package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"telecopy/internal/config"
	"telecopy/internal/logger"
	"telecopy/internal/session"
	"telecopy/internal/transport"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "telecopy",
	Short: "Run and observe channel copy jobs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openSession() (*session.Store, error) {
	store, err := session.Open(cfg.SessionPath)
	if err != nil {
		return nil, err
	}
	if !store.Active() {
		return nil, session.ErrNoSession
	}
	return store, nil
}

func newClient(sess *session.Store) *transport.Client {
	return transport.NewClient(cfg.APIURL, sess, cfg.RequestTimeout)
}

// sessionError maps 401 responses to the CLI's logout behavior: the stored
// session is cleared and the user is told to log in again.
func sessionError(sess *session.Store, err error) error {
	if err == nil {
		return nil
	}
	if transport.IsUnauthorized(err) {
		_ = sess.Clear()
		return fmt.Errorf("session rejected by the service, run 'telecopy login' again: %w", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
