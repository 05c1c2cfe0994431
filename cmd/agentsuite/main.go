package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agentsuite/internal/config"
	"agentsuite/internal/logging"
	"agentsuite/internal/memory"
	"agentsuite/internal/protocol"
	"agentsuite/internal/store"
)

const version = "1.0.0"

var (
	// Global flags
	verbose   bool
	workspace string
	timeout   time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agentsuite",
	Short: "agentsuite - protocol execution engine for AI agent workflows",
	Long: `agentsuite discovers markdown protocol documents, executes their phases,
and maintains a shared memory bank for agent sessions.

Protocols are Protocol_*.md files whose phases are declared with
"## **Phase N: Title**" headers. Execution walks every phase, records
per-phase outcomes, and assembles a structured result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(resolveWorkspace()); err != nil {
			logger.Warn("File logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	if ws := os.Getenv("AGENTSUITE_WORKSPACE"); ws != "" {
		return ws
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// app wires the engine components for one command invocation.
type app struct {
	ws       string
	cfg      *config.Config
	registry *protocol.Registry
	executor *protocol.Executor
	bank     *memory.Bank
	history  *store.HistoryStore // nil when history is disabled
}

func buildApp() (*app, error) {
	ws := resolveWorkspace()

	cfg, err := config.LoadWorkspace(ws)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	source := protocol.NewDirSource(ws, cfg.Protocols.Dirs...)
	registry := protocol.NewRegistry(source,
		protocol.WithDescriptionLimit(cfg.Protocols.DescriptionLimit))

	opts := []protocol.ExecutorOption{
		protocol.WithHaltOnFailure(cfg.Execution.HaltOnPhaseFailure),
		protocol.WithPhaseTimeout(cfg.GetPhaseTimeout()),
	}

	var history *store.HistoryStore
	if cfg.History.Enabled {
		history, err = store.NewHistoryStore(filepath.Join(ws, cfg.History.DatabasePath))
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		opts = append(opts, protocol.WithRecorder(history))
	}

	return &app{
		ws:       ws,
		cfg:      cfg,
		registry: registry,
		executor: protocol.NewExecutor(registry, opts...),
		bank:     memory.NewBank(filepath.Join(ws, cfg.Memory.Dir)),
		history:  history,
	}, nil
}

func (a *app) Close() {
	if a.history != nil {
		_ = a.history.Close()
	}
}
