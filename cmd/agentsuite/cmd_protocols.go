package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"agentsuite/cmd/agentsuite/ui"
	"agentsuite/internal/protocol"
)

var (
	runContext []string
	runJSON    bool
)

// listCmd lists discovered protocols
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available protocols",
	RunE:  listProtocols,
}

// showCmd renders one protocol document
var showCmd = &cobra.Command{
	Use:   "show [protocol]",
	Short: "Show phase breakdown and content for a protocol",
	Args:  cobra.ExactArgs(1),
	RunE:  showProtocol,
}

// runCmd executes a protocol
var runCmd = &cobra.Command{
	Use:   "run [protocol]",
	Short: "Execute a protocol and print the result",
	Long: `Executes every phase of the named protocol and prints per-phase
outcomes. A phase failure does not abort the run unless
execution.halt_on_phase_failure is set; all failures are collected in
the result.

Context values are passed through to the execution result:
  agentsuite run "Release Checklist" --context ticket=OPS-7`,
	Args: cobra.ExactArgs(1),
	RunE: runProtocol,
}

// browseCmd opens the interactive protocol picker
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse protocols interactively",
	RunE:  browseProtocols,
}

func init() {
	runCmd.Flags().StringArrayVar(&runContext, "context", nil, "Context entry as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the raw result as JSON")
}

func listProtocols(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	summaries := a.registry.List(ctx)
	if len(summaries) == 0 {
		fmt.Println("No protocols found. Add Protocol_*.md files to the workspace.")
		return nil
	}

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("Protocols (%d)", len(names))))
	for _, name := range names {
		sum := summaries[name]
		fmt.Printf("  %s %s\n",
			ui.TitleStyle.Render(sum.Name),
			ui.SubtitleStyle.Render(fmt.Sprintf("(%d phases)", sum.Phases)))
		if sum.Description != "" {
			fmt.Printf("    %s\n", ui.SubtitleStyle.Render(sum.Description))
		}
	}
	return nil
}

func showProtocol(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	name := args[0]
	p, err := a.registry.Resolve(ctx, name)
	if err != nil {
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		out, rerr := renderer.Render(p.RawContent)
		if rerr == nil {
			fmt.Print(out)
			return nil
		}
	}

	// Fall back to plain text when the terminal renderer is unavailable
	fmt.Println(p.RawContent)
	return nil
}

func runProtocol(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	callerCtx, err := parseContextFlags(runContext)
	if err != nil {
		return err
	}

	rec, err := a.executor.Execute(ctx, args[0], callerCtx)
	if err != nil {
		return err
	}

	result := protocol.AssembleResult(rec)
	if runJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printRecord(rec)
	return nil
}

func printRecord(rec *protocol.ExecutionRecord) {
	fmt.Println(ui.HeaderStyle.Render(fmt.Sprintf("%s  %s", rec.ProtocolName, rec.ExecutionID)))
	for _, pr := range rec.PhaseResults {
		style := ui.StatusStyle(string(pr.Status))
		fmt.Printf("  %s Phase %d: %s", style.Render(statusGlyph(pr.Status)), pr.Phase, pr.Title)
		if pr.Detail != "" {
			fmt.Printf("  %s", ui.SubtitleStyle.Render(pr.Detail))
		}
		fmt.Println()
	}

	fmt.Println(recordSummary(rec))

	if len(rec.Errors) > 0 {
		fmt.Println(ui.PhaseFailedStyle.Render(fmt.Sprintf("%d error(s):", len(rec.Errors))))
		for _, e := range rec.Errors {
			fmt.Printf("  phase %d: %s\n", e.Phase, e.Reason)
		}
	}
}

func recordSummary(rec *protocol.ExecutionRecord) string {
	return ui.DetailBoxStyle.Render(fmt.Sprintf("%d/%d phases completed in %.2fs",
		rec.PhasesCompleted, rec.TotalPhases, rec.Duration.Seconds()))
}

func statusGlyph(status protocol.PhaseStatus) string {
	switch status {
	case protocol.PhaseCompleted:
		return "✓"
	case protocol.PhaseFailed:
		return "✗"
	default:
		return "-"
	}
}

func browseProtocols(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	summaries := a.registry.List(ctx)
	if len(summaries) == 0 {
		fmt.Println("No protocols found. Add Protocol_*.md files to the workspace.")
		return nil
	}

	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]ui.ProtocolItem, 0, len(names))
	for _, name := range names {
		sum := summaries[name]
		items = append(items, ui.ProtocolItem{
			Name:       sum.Name,
			PhaseCount: sum.Phases,
			Desc:       sum.Description,
		})
	}

	final, err := tea.NewProgram(ui.NewBrowseModel(items), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("browse UI failed: %w", err)
	}

	model, ok := final.(ui.BrowseModel)
	if !ok || model.Selected() == "" {
		return nil
	}

	return showProtocol(cmd, []string{model.Selected()})
}

func parseContextFlags(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", entry)
		}
		out[key] = value
	}
	return out, nil
}
