package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show plan usage and limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}

		stats, err := newClient(sess).UsageStats(cmd.Context())
		if err != nil {
			return sessionError(sess, err)
		}

		fmt.Printf("plan %s (%s)\n", stats.Plan, stats.Owner)
		fmt.Printf("  messages today:  %d / %d (%.0f%%)\n",
			stats.MessagesCopiedToday, stats.UsageLimit, stats.UsagePercentage)
		fmt.Printf("  historical jobs: %d / %d\n", stats.HistoricalJobs, stats.HistoricalJobsLimit)
		fmt.Printf("  real-time jobs:  %d / %d\n", stats.RealtimeJobs, stats.RealtimeJobsLimit)
		if stats.LimitMessage != "" {
			fmt.Printf("  note: %s\n", stats.LimitMessage)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
