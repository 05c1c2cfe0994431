package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentsuite/internal/mcp"
	"agentsuite/internal/protocol"
)

// serveCmd runs the MCP server on stdio
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the protocol engine over MCP on stdio",
	Long: `Speaks JSON-RPC 2.0 on stdin/stdout so MCP clients can list and run
protocols and read or update the memory bank. Diagnostics go to stderr
and the log files, never stdout.

Register in an MCP client configuration as:
  { "command": "agentsuite", "args": ["serve"] }`,
	RunE: serveMCP,
}

func serveMCP(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if a.cfg.Protocols.WatchEnabled {
		watcher, werr := protocol.NewWatcher(a.registry, watchDirs(a)...)
		if werr != nil {
			logger.Warn("Protocol watcher unavailable", zap.Error(werr))
		} else if werr := watcher.Start(ctx); werr != nil {
			logger.Warn("Protocol watcher failed to start", zap.Error(werr))
		} else {
			defer watcher.Stop()
		}
	}

	server := mcp.NewServer(a.registry, a.executor, a.bank, a.cfg.Name, version)
	logger.Info("MCP server listening on stdio")
	return server.Serve(ctx, os.Stdin, os.Stdout)
}

// watchDirs returns the absolute directories the watcher should observe.
func watchDirs(a *app) []string {
	dirs := []string{a.ws}
	for _, dir := range a.cfg.Protocols.Dirs {
		dirs = append(dirs, filepath.Join(a.ws, dir))
	}
	return dirs
}
