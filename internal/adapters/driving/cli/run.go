package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driven"
	"github.com/alterPublics/issue-obervatory-sub001/internal/core/ports/driving"
)

var (
	runMode          string
	runFrom          string
	runTo            string
	runTierOverrides []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch and supervise collection runs",
}

var runStartCmd = &cobra.Command{
	Use:   "start [design-id]",
	Short: "Start a collection run for a query design",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

var runStatusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show a run and its per-arena tasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var runCancelCmd = &cobra.Command{
	Use:   "cancel [run-id]",
	Short: "Cancel a pending or running run",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

var runWatchCmd = &cobra.Command{
	Use:   "watch [run-id]",
	Short: "Stream task events for a run until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	runStartCmd.Flags().StringVar(&runMode, "mode", "batch", "collection mode (batch or live)")
	runStartCmd.Flags().StringVar(&runFrom, "from", "", "start of the date range (YYYY-MM-DD)")
	runStartCmd.Flags().StringVar(&runTo, "to", "", "end of the date range (YYYY-MM-DD)")
	runStartCmd.Flags().StringArrayVar(&runTierOverrides, "tier", nil, "per-arena tier override (platform=tier, repeatable)")

	runCmd.AddCommand(runStartCmd)
	runCmd.AddCommand(runStatusCmd)
	runCmd.AddCommand(runCancelCmd)
	runCmd.AddCommand(runWatchCmd)
	runCmd.AddCommand(runListCmd)
	rootCmd.AddCommand(runCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("run orchestrator not configured")
	}

	req := driving.RunRequest{DesignID: args[0]}

	switch runMode {
	case string(domain.ModeBatch):
		req.Mode = domain.ModeBatch
	case string(domain.ModeLive):
		req.Mode = domain.ModeLive
	default:
		return fmt.Errorf("unknown mode %q (want batch or live)", runMode)
	}

	dateRange, err := parseDateRange(runFrom, runTo)
	if err != nil {
		return err
	}
	req.DateRange = dateRange

	if len(runTierOverrides) > 0 {
		req.TierOverrides = make(map[string]domain.Tier, len(runTierOverrides))
		for _, override := range runTierOverrides {
			platform, tierName, ok := strings.Cut(override, "=")
			if !ok {
				return fmt.Errorf("invalid tier override %q (want platform=tier)", override)
			}
			tier, err := domain.ParseTier(tierName)
			if err != nil {
				return err
			}
			req.TierOverrides[platform] = tier
		}
	}

	// Tasks execute inside this process, so subscribe before the run
	// starts and stay attached until it settles.
	var events <-chan driven.TaskEvent
	if statusFeed != nil {
		subscribed, cancel := statusFeed.Subscribe()
		defer cancel()
		events = subscribed
	}

	run, err := orchestrator.StartRun(context.Background(), req)
	if err != nil {
		return fmt.Errorf("starting run: %w", err)
	}
	cmd.Printf("Run %s started (%s)\n", run.ID, run.Status)

	if run.Status.Terminal() || events == nil {
		printRun(cmd, run)
		return nil
	}
	return streamRun(cmd, run.ID, events)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("run orchestrator not configured")
	}

	view, err := orchestrator.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("fetching run status: %w", err)
	}

	printRun(cmd, &view.Run)
	cmd.Println()
	for i := range view.Tasks {
		printTask(cmd, &view.Tasks[i])
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if orchestrator == nil {
		return errors.New("run orchestrator not configured")
	}

	if err := orchestrator.CancelRun(context.Background(), args[0]); err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	cmd.Printf("Run %s cancelled\n", args[0])
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if orchestrator == nil || statusFeed == nil {
		return errors.New("run orchestrator not configured")
	}
	runID := args[0]

	// Subscribe before the status check so no event can slip between.
	events, cancel := statusFeed.Subscribe()
	defer cancel()

	view, err := orchestrator.Status(context.Background(), runID)
	if err != nil {
		return fmt.Errorf("fetching run status: %w", err)
	}
	if view.Run.Status.Terminal() {
		printRun(cmd, &view.Run)
		return nil
	}
	return streamRun(cmd, runID, events)
}

// streamRun prints a run's task events until the run turns terminal.
func streamRun(cmd *cobra.Command, runID string, events <-chan driven.TaskEvent) error {
	for event := range events {
		if event.RunID != runID {
			continue
		}
		line := fmt.Sprintf("%s  %-12s %s", event.At.Format(time.TimeOnly), event.Platform, event.Status)
		if event.Records > 0 {
			line += fmt.Sprintf(" (%d records)", event.Records)
		}
		if event.Error != "" {
			line += "  " + event.Error
		}
		cmd.Println(line)

		if !event.Terminal() {
			continue
		}
		view, err := orchestrator.Status(context.Background(), runID)
		if err != nil {
			return fmt.Errorf("fetching run status: %w", err)
		}
		if view.Run.Status.Terminal() {
			cmd.Println()
			printRun(cmd, &view.Run)
			return nil
		}
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if runStore == nil {
		return errors.New("run store not configured")
	}

	runs, err := runStore.ListRuns(context.Background())
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs yet.")
		return nil
	}
	for i := range runs {
		run := &runs[i]
		cmd.Printf("%s  %-17s %-5s %d records  design %s\n",
			run.CreatedAt.Format(time.DateTime), run.Status, run.Mode, run.RecordCount, run.DesignID)
		cmd.Printf("  id: %s\n", run.ID)
	}
	return nil
}

func printRun(cmd *cobra.Command, run *domain.CollectionRun) {
	cmd.Printf("Run %s\n", run.ID)
	cmd.Printf("  design:  %s\n", run.DesignID)
	cmd.Printf("  mode:    %s\n", run.Mode)
	cmd.Printf("  status:  %s\n", run.Status)
	cmd.Printf("  records: %d\n", run.RecordCount)
	if !run.StartedAt.IsZero() {
		cmd.Printf("  started: %s\n", run.StartedAt.Format(time.DateTime))
	}
	if !run.CompletedAt.IsZero() {
		cmd.Printf("  finished: %s\n", run.CompletedAt.Format(time.DateTime))
	}
}

func printTask(cmd *cobra.Command, task *domain.CollectionTask) {
	cmd.Printf("  %-12s %-10s tier %-8s %d records", task.Platform, task.Status, task.Tier, task.RecordsProduced)
	if task.ErrorClass != domain.ErrorClassNone {
		cmd.Printf("  [%s] %s", task.ErrorClass, task.ErrorDetail)
	}
	cmd.Println()
}

func parseDateRange(from, to string) (domain.DateRange, error) {
	var dateRange domain.DateRange
	if from != "" {
		parsed, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
		dateRange.From = parsed
	}
	if to != "" {
		parsed, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		// Make --to inclusive of the named day.
		dateRange.To = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	if !dateRange.From.IsZero() && !dateRange.To.IsZero() && dateRange.To.Before(dateRange.From) {
		return domain.DateRange{}, fmt.Errorf("date range ends before it starts: %w", domain.ErrInvalidInput)
	}
	return dateRange, nil
}
