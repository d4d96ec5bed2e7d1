package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"telecopy/internal/cache"
	"telecopy/internal/logger"
	"telecopy/internal/model"
	"telecopy/internal/mutate"
	"telecopy/internal/poller"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control copy jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your copy jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}

		jobs, err := newClient(sess).ListJobs(cmd.Context(), sess.Phone())
		if err != nil {
			return sessionError(sess, err)
		}

		if len(jobs) == 0 {
			fmt.Println("no copy jobs")
			return nil
		}

		printJobTable(jobs)
		return nil
	},
}

var jobsFollow bool

var jobsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one job, optionally following it until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		sess, err := openSession()
		if err != nil {
			return err
		}
		client := newClient(sess)
		id := args[0]

		job, err := client.GetJob(cmd.Context(), id)
		if err != nil {
			return sessionError(sess, err)
		}
		printJobDetail(job)

		if !jobsFollow || job.Status.Terminal() {
			return nil
		}

		store := cache.NewStore()
		store.Apply(job)

		events, cancelSub := store.Subscribe()
		defer cancelSub()

		p := poller.NewDetailPoller(client, store, id, poller.AlwaysVisible(), poller.RealClock(), cfg.ActivePoll)
		p.Start()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		for {
			select {
			case <-sigCh:
				p.Stop()
				return nil

			case <-p.Done():
				if final, ok := store.Job(id); ok {
					printJobDetail(final)
				}
				return nil

			case ev := <-events:
				if ev.Type != cache.EventUpsert {
					continue
				}
				if current, ok := store.Job(id); ok {
					fmt.Printf("%-10s copied=%d failed=%d %s\n",
						current.Status, current.MessagesCopied, current.MessagesFailed, current.StatusMessage)
				}
			}
		}
	},
}

var jobsStopCmd = &cobra.Command{
	Use:   "stop [id]",
	Short: "Stop a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobCommand(cmd.Context(), args[0], (*mutate.Orchestrator).Stop)
	},
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobCommand(cmd.Context(), args[0], (*mutate.Orchestrator).Pause)
	},
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobCommand(cmd.Context(), args[0], (*mutate.Orchestrator).Resume)
	},
}

// runJobCommand seeds the cache with fresh server truth so the
// orchestrator's pre-flight checks the real current status, then runs the
// command through the optimistic protocol.
func runJobCommand(ctx context.Context, id string, command func(*mutate.Orchestrator, context.Context, string) error) error {
	defer logger.Sync()

	sess, err := openSession()
	if err != nil {
		return err
	}
	client := newClient(sess)

	job, err := client.GetJob(ctx, id)
	if err != nil {
		return sessionError(sess, err)
	}

	store := cache.NewStore()
	store.Apply(job)

	orch := mutate.New(client, store, printNotifier{}, nil)
	if err := command(orch, ctx, id); err != nil {
		return sessionError(sess, err)
	}

	return nil
}

func printJobTable(jobs []model.Job) {
	fmt.Printf("%-36s %-10s %-20s %-20s %-9s %-7s\n",
		"ID", "STATUS", "SOURCE", "TARGET", "COPIED", "FAILED")

	for _, job := range jobs {
		fmt.Printf("%-36s %-10s %-20s %-20s %-9d %-7d\n",
			job.ID, job.Status, job.SourceChannel, job.TargetChannel,
			job.MessagesCopied, job.MessagesFailed)
	}
}

func printJobDetail(job model.Job) {
	fmt.Printf("job %s\n", job.ID)
	fmt.Printf("  %s -> %s\n", job.SourceChannel, job.TargetChannel)
	fmt.Printf("  status:  %s\n", job.Status)
	fmt.Printf("  copied:  %d (failed: %d)\n", job.MessagesCopied, job.MessagesFailed)
	fmt.Printf("  created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("  started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  ended:   %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if job.StatusMessage != "" {
		fmt.Printf("  note:    %s\n", job.StatusMessage)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("  error:   %s\n", job.ErrorMessage)
	}
}

func init() {
	jobsGetCmd.Flags().BoolVar(&jobsFollow, "follow", false, "Poll the job until it reaches a terminal status")
	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsStopCmd, jobsPauseCmd, jobsResumeCmd)
	rootCmd.AddCommand(jobsCmd)
}
