package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"agentsuite/cmd/agentsuite/ui"
	"agentsuite/internal/memory"
)

var decisionRationale string

// memoryCmd groups memory bank commands
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and update the shared memory bank",
	Long: `The memory bank is a directory of markdown context files shared across
agent sessions: active context, decision log, product context, progress,
project brief, and system patterns.`,
}

var memoryShowCmd = &cobra.Command{
	Use:   "show [kind]",
	Short: "Show one context file, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showMemory,
}

var memoryUpdateCmd = &cobra.Command{
	Use:   "append [kind] [content]",
	Short: "Append content to a context file",
	Args:  cobra.ExactArgs(2),
	RunE:  appendMemory,
}

var memoryDecisionCmd = &cobra.Command{
	Use:   "log-decision [decision]",
	Short: "Record a decision with its rationale in the decision log",
	Args:  cobra.MinimumNArgs(1),
	RunE:  logDecision,
}

func init() {
	memoryDecisionCmd.Flags().StringVar(&decisionRationale, "rationale", "", "Why the decision was made (required)")
	memoryDecisionCmd.MarkFlagRequired("rationale")

	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryUpdateCmd)
	memoryCmd.AddCommand(memoryDecisionCmd)
}

func showMemory(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		c, err := a.bank.GetContext(memory.Kind(args[0]))
		if err != nil {
			return err
		}
		return renderMarkdown(c.Content)
	}

	all, err := a.bank.GetAllContexts()
	if err != nil {
		return err
	}
	for _, kind := range memory.Kinds() {
		c, ok := all[kind]
		if !ok {
			continue
		}
		fmt.Println(ui.HeaderStyle.Render(string(kind)))
		if err := renderMarkdown(c.Content); err != nil {
			return err
		}
	}
	return nil
}

func appendMemory(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	kind := memory.Kind(args[0])
	if err := a.bank.UpdateContext(kind, memory.Update{Append: args[1]}); err != nil {
		return err
	}
	fmt.Printf("Updated %s context\n", kind)
	return nil
}

func logDecision(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	decision := strings.Join(args, " ")
	if err := a.bank.LogDecision(decision, decisionRationale, nil); err != nil {
		return err
	}
	fmt.Println("Decision logged")
	return nil
}

func renderMarkdown(content string) error {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		if out, rerr := renderer.Render(content); rerr == nil {
			fmt.Print(out)
			return nil
		}
	}
	fmt.Println(content)
	return nil
}
