package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"agentsuite/cmd/agentsuite/ui"
	"agentsuite/internal/config"
	"agentsuite/internal/memory"
)

// initCmd initializes agentsuite in the current workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize agentsuite in the current workspace",
	Long: `Sets up a new workspace:

  1. Creates the .suite/ directory with a default config.yaml
  2. Creates the protocols/ directory with a starter protocol
  3. Initializes the memory bank context files

Run this once per project.`,
	RunE: runInit,
}

const starterProtocol = `# Example Protocol

A starting point showing the expected document shape. Phases are declared
with second-level headers; steps are bullet points under each phase.

## **Phase 1: Understand**

- Read the task description
- Identify affected components

## **Phase 2: Act**

- Make the change
- Verify the result

## **Phase 3: Record**

- Update the progress context
- Log significant decisions
`

func runInit(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()

	cfg := config.DefaultConfig()
	cfgPath := filepath.Join(ws, ".suite", "config.yaml")
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Println("Workspace already initialized.")
		return nil
	}

	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("  %s %s\n", ui.PhaseCompletedStyle.Render("✓"), "created .suite/config.yaml")

	protocolsDir := filepath.Join(ws, "protocols")
	if err := os.MkdirAll(protocolsDir, 0755); err != nil {
		return fmt.Errorf("failed to create protocols directory: %w", err)
	}
	starterPath := filepath.Join(protocolsDir, "Protocol_Example.md")
	if _, err := os.Stat(starterPath); os.IsNotExist(err) {
		if err := os.WriteFile(starterPath, []byte(starterProtocol), 0644); err != nil {
			return fmt.Errorf("failed to write starter protocol: %w", err)
		}
		fmt.Printf("  %s %s\n", ui.PhaseCompletedStyle.Render("✓"), "created protocols/Protocol_Example.md")
	}

	bank := memory.NewBank(filepath.Join(ws, cfg.Memory.Dir))
	if err := bank.Init(); err != nil {
		return fmt.Errorf("failed to initialize memory bank: %w", err)
	}
	fmt.Printf("  %s %s\n", ui.PhaseCompletedStyle.Render("✓"), "initialized memory bank")

	fmt.Println(ui.TitleStyle.Render("\nWorkspace ready. Try: agentsuite list"))
	return nil
}
