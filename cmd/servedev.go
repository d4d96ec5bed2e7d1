package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telecopy/internal/devserver"
	"telecopy/internal/logger"
)

var serveDevCmd = &cobra.Command{
	Use:   "serve-dev",
	Short: "Run a local stub of the copy service for development",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		store, err := devserver.OpenStore(cfg.DevServerDB)
		if err != nil {
			return err
		}

		srv := devserver.NewServer(store, cfg.DevServerPort)
		srv.Start()

		logger.Log.Info("dev copy service ready",
			zap.Int("port", cfg.DevServerPort),
			zap.String("db", cfg.DevServerDB))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveDevCmd)
}
