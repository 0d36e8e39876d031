package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Scheduler is the slice of the live scheduler the serve command needs.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop()
}

var scheduler Scheduler

// ConfigureScheduler injects the live scheduler for the serve command.
func ConfigureScheduler(s Scheduler) {
	scheduler = s
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live scheduler until interrupted",
	Long: `Keeps the engine running and periodically re-dispatches every query
design that has a live interval configured. Stop with Ctrl-C; in-flight
collections are drained before exit.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if scheduler == nil {
		return errors.New("live scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Println("Live scheduler running. Press Ctrl-C to stop.")
	err := scheduler.Start(ctx)
	scheduler.Stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Stopped.")
	return nil
}
