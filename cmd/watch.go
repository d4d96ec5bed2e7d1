package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telecopy/internal/cache"
	"telecopy/internal/logger"
	"telecopy/internal/poller"
	"telecopy/internal/usage"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of your copy jobs",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	defer logger.Sync()

	sess, err := openSession()
	if err != nil {
		return err
	}
	// Pick up re-logins from other terminals while we run.
	if err := sess.Watch(); err != nil {
		return err
	}
	defer sess.Close()

	client := newClient(sess)
	store := cache.NewStore()

	events, cancelSub := store.Subscribe()
	defer cancelSub()

	vis := poller.AlwaysVisible()
	clock := poller.RealClock()

	lists := poller.NewListPoller(client, store, sess.Phone(), vis, clock, cfg.ActivePoll, cfg.IdlePoll)
	lists.Start()
	defer lists.Stop()

	keeper := usage.NewKeeper(client, vis, clock, cfg.UsageRefresh)
	keeper.Start()
	defer keeper.Stop()

	logger.Log.Info("watching jobs",
		zap.String("owner", sess.Phone()),
		zap.Duration("active_poll", cfg.ActivePoll),
		zap.Duration("idle_poll", cfg.IdlePoll))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sigCh:
			fmt.Println()
			return nil

		case ev := <-events:
			if ev.Type != cache.EventUpsert || ev.Owner != sess.Phone() {
				continue
			}

			jobs := store.Jobs(sess.Phone())
			if len(jobs) == 0 {
				fmt.Println("no copy jobs")
				continue
			}

			fmt.Println()
			printJobTable(jobs)
			if stats, ok := keeper.Current(); ok && stats.LimitMessage != "" {
				fmt.Printf("note: %s\n", stats.LimitMessage)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
