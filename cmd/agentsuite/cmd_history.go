package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agentsuite/cmd/agentsuite/ui"
)

var historyLimit int

// historyCmd shows past executions
var historyCmd = &cobra.Command{
	Use:   "history [execution-id]",
	Short: "Show past protocol executions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of executions to show")
}

func showHistory(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if a.history == nil {
		return fmt.Errorf("history is disabled in configuration")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if len(args) == 1 {
		rec, err := a.history.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("no execution with id %s", args[0])
		}
		printRecord(rec)
		return nil
	}

	records, err := a.history.Recent(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No executions recorded yet.")
		return nil
	}

	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("Recent executions (%d)", len(records))))
	for _, rec := range records {
		status := ui.PhaseCompletedStyle
		if rec.PhasesCompleted < rec.TotalPhases {
			status = ui.PhaseFailedStyle
		}
		fmt.Printf("  %s  %s  %s  %s\n",
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ExecutionID,
			rec.ProtocolName,
			status.Render(fmt.Sprintf("%d/%d", rec.PhasesCompleted, rec.TotalPhases)))
	}
	return nil
}
