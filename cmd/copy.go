package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telecopy/internal/cache"
	"telecopy/internal/logger"
	"telecopy/internal/model"
	"telecopy/internal/mutate"
	"telecopy/internal/poller"
	"telecopy/internal/usage"
)

var (
	copyRealTime bool
	copyNoMedia  bool
)

var copyCmd = &cobra.Command{
	Use:   "copy [source] [target]",
	Short: "Create a new copy job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		sess, err := openSession()
		if err != nil {
			return err
		}
		client := newClient(sess)

		keeper := usage.NewKeeper(client, poller.AlwaysVisible(), poller.RealClock(), cfg.UsageRefresh)
		if err := keeper.Refresh(cmd.Context()); err != nil {
			// Without a snapshot the gate lets the server decide.
			logger.Log.Warn("could not fetch usage snapshot",
				zap.Error(err))
		}

		orch := mutate.New(client, cache.NewStore(), printNotifier{}, keeper)

		res, err := orch.Create(cmd.Context(), model.CopySpec{
			Owner:         sess.Phone(),
			SourceChannel: args[0],
			TargetChannel: args[1],
			RealTime:      copyRealTime,
			CopyMedia:     !copyNoMedia,
		})
		if err != nil {
			return sessionError(sess, err)
		}

		fmt.Printf("job %s created (%s), follow it with 'telecopy jobs get %s --follow'\n",
			res.ID, res.Status, res.ID)
		return nil
	},
}

func init() {
	copyCmd.Flags().BoolVar(&copyRealTime, "real-time", false, "Keep copying new messages continuously")
	copyCmd.Flags().BoolVar(&copyNoMedia, "no-media", false, "Skip media files")
	rootCmd.AddCommand(copyCmd)
}
