// Package memory implements the memory bank: persistent markdown context
// files for goals, decisions, product notes and progress tracking, kept under
// <workspace>/memory-bank/.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentsuite/internal/logging"
)

// Kind identifies one of the fixed memory contexts.
type Kind string

const (
	KindActive    Kind = "active"    // current goals and blockers
	KindDecisions Kind = "decisions" // architectural decision log
	KindProduct   Kind = "product"   // product context
	KindProgress  Kind = "progress"  // task progress
	KindProject   Kind = "project"   // project brief
	KindPatterns  Kind = "patterns"  // system patterns
)

// ErrUnknownKind is returned when an operation names a context kind outside
// the fixed set. Surfaced, never retried.
var ErrUnknownKind = errors.New("unknown context kind")

// kindFiles maps each kind to its file under the memory directory.
var kindFiles = map[Kind]string{
	KindActive:    "activeContext.md",
	KindDecisions: "decisionLog.md",
	KindProduct:   "productContext.md",
	KindProgress:  "progress.md",
	KindProject:   "projectBrief.md",
	KindPatterns:  "systemPatterns.md",
}

// defaultContent holds the skeleton written when a context file is missing.
var defaultContent = map[Kind]string{
	KindActive:    "# Active Context\n\n## Current Goals\n\n- Goal 1\n\n## Current Blockers\n\n- None yet",
	KindDecisions: "# Decision Log\n\n## Architectural Decisions\n\n### Decision 1\n- **Date**: TBD\n- **Decision**: TBD\n- **Rationale**: TBD\n- **Context**: TBD",
	KindProduct:   "# Product Context\n\n## Overview\n\nTBD",
	KindProgress:  "# Progress\n\n## Completed Tasks\n\n- None yet\n\n## Current Tasks\n\n- None yet\n\n## Upcoming Tasks\n\n- None yet",
	KindProject:   "# Project Brief\n\n## Objective\n\nTBD\n\n## Scope\n\nTBD\n\n## Timeline\n\nTBD",
	KindPatterns:  "# System Patterns\n\n## Architectural Patterns\n\nTBD\n\n## Design Patterns\n\nTBD",
}

// Kinds returns the fixed set of recognized kinds, in a stable order.
func Kinds() []Kind {
	return []Kind{KindActive, KindDecisions, KindProduct, KindProgress, KindProject, KindPatterns}
}

// Context is the view of one memory context returned by GetContext.
type Context struct {
	Type         Kind      `json:"type"`
	Content      string    `json:"content"`
	LastModified time.Time `json:"last_modified"`
}

// Update describes a context mutation: Content replaces the file wholesale,
// Append adds to it. When both are set, Content wins.
type Update struct {
	Content string
	Append  string
}

// Bank manages the persistent memory files for one workspace.
type Bank struct {
	mu  sync.Mutex
	dir string
}

// NewBank creates a bank rooted at the given memory directory.
func NewBank(dir string) *Bank {
	return &Bank{dir: dir}
}

// Init ensures the memory directory and all context files exist.
func (b *Bank) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	for _, kind := range Kinds() {
		path := b.path(kind)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(defaultContent[kind]), 0644); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
		}
		logging.MemoryDebug("created default memory file %s", filepath.Base(path))
	}

	logging.Memory("memory bank initialized at %s", b.dir)
	return nil
}

func (b *Bank) path(kind Kind) string {
	return filepath.Join(b.dir, kindFiles[kind])
}

// GetContext returns the content of one memory context, creating the default
// file first if it is missing.
func (b *Bank) GetContext(kind Kind) (*Context, error) {
	if _, ok := kindFiles[kind]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.path(kind)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(b.dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create memory directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultContent[kind]), 0644); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s context: %w", kind, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s context: %w", kind, err)
	}

	return &Context{
		Type:         kind,
		Content:      string(data),
		LastModified: info.ModTime(),
	}, nil
}

// UpdateContext applies an update to one memory context.
func (b *Bank) UpdateContext(kind Kind, update Update) error {
	if _, ok := kindFiles[kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	path := b.path(kind)
	switch {
	case update.Content != "":
		if err := os.WriteFile(path, []byte(update.Content), 0644); err != nil {
			return fmt.Errorf("failed to write %s context: %w", kind, err)
		}
	case update.Append != "":
		existing, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read %s context: %w", kind, err)
		}
		content := string(existing)
		if content != "" {
			content += "\n\n"
		}
		content += update.Append
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s context: %w", kind, err)
		}
	default:
		return fmt.Errorf("update for %s context has neither content nor append", kind)
	}

	logging.Memory("updated %s context", kind)
	return nil
}

// LogDecision appends an architectural or implementation decision to the
// decision log with a timestamp and the JSON-encoded context.
func (b *Bank) LogDecision(decision, rationale string, context map[string]any) error {
	if context == nil {
		context = map[string]any{}
	}
	ctxJSON, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode decision context: %w", err)
	}

	entry := fmt.Sprintf("### %s\n- **Date**: %s\n- **Decision**: %s\n- **Rationale**: %s\n- **Context**: %s\n",
		decision, time.Now().Format(time.RFC3339), decision, rationale, ctxJSON)

	if err := b.UpdateContext(KindDecisions, Update{Append: entry}); err != nil {
		return err
	}
	logging.Memory("logged decision: %s", decision)
	return nil
}

// GetAllContexts returns every memory context keyed by kind.
func (b *Bank) GetAllContexts() (map[Kind]*Context, error) {
	out := make(map[Kind]*Context, len(kindFiles))
	for _, kind := range Kinds() {
		ctx, err := b.GetContext(kind)
		if err != nil {
			return nil, err
		}
		out[kind] = ctx
	}
	return out, nil
}
