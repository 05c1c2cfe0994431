// Package protocol implements the protocol execution engine: discovery and
// parsing of phase-structured workflow documents, tracked execution attempts
// against them, and assembly of the externally visible result shape.
package protocol

import (
	"time"
)

// Protocol is the immutable parsed representation of one workflow document.
// Instances are created by the Registry and never mutated afterwards; a reload
// replaces the cached instance rather than changing it.
type Protocol struct {
	// Name is the canonical identifier, derived from the document's H1 title.
	// The filename is only a lookup hint.
	Name string `json:"name"`

	// SourceID is an opaque reference to where the raw content was loaded
	// from. Owned by the Registry; not interpreted by the engine.
	SourceID string `json:"source_id"`

	// Phases in document order. Empty when the document has no recognizable
	// phase headers, which is a valid state.
	Phases []Phase `json:"phases"`

	// RawContent is the original document text, retained for inspection.
	RawContent string `json:"-"`

	// Metadata extracted from well-known "Key: value" lines in the document
	// (estimated duration, complexity, required roles).
	Metadata map[string]string `json:"metadata"`

	// DSLBlocks are the bodies of ```dsl fenced code blocks, in document
	// order. Empty for documents without directive blocks.
	DSLBlocks []string `json:"-"`
}

// Phase is one ordered step-group within a protocol.
type Phase struct {
	// Index is the 1-based position within the protocol. Indexes are
	// contiguous and strictly increasing in document order.
	Index int `json:"index"`

	// Title is the phase's declared label.
	Title string `json:"title"`

	// Steps are the bullet items found under the phase header, in order.
	Steps []string `json:"steps"`
}

// Summary is the per-protocol entry returned by Registry.List.
type Summary struct {
	Name        string `json:"name"`
	Phases      int    `json:"phases"`
	Description string `json:"description"`
	DSLSupport  bool   `json:"dsl_support"`
}

// Details is the expanded view returned by Registry.Details.
type Details struct {
	Name       string            `json:"name"`
	Phases     []PhaseInfo       `json:"phases"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	DSLSupport bool              `json:"dsl_support"`
}

// PhaseInfo is the abbreviated phase shape used in protocol details.
type PhaseInfo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// PhaseStatus represents the outcome of one attempted phase.
type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// PhaseResult records the outcome of one attempted phase.
type PhaseResult struct {
	Phase          int         `json:"phase"`
	Title          string      `json:"title"`
	Status         PhaseStatus `json:"status"`
	Detail         string      `json:"detail,omitempty"`
	StepsEvaluated int         `json:"steps_evaluated"`
	ExecutionTime  float64     `json:"execution_time"` // seconds
}

// ExecutionError describes a single non-fatal problem accumulated during a run.
type ExecutionError struct {
	Phase  int    `json:"phase"`
	Reason string `json:"reason"`
}

// ExecutionRecord is the result of one attempt to run a protocol.
// It is created at the start of Execute, mutated only during that call, and
// owned exclusively by the caller once returned.
type ExecutionRecord struct {
	ExecutionID     string           `json:"execution_id"`
	ProtocolName    string           `json:"protocol_name"`
	StartedAt       time.Time        `json:"started_at"`
	Duration        time.Duration    `json:"duration"`
	PhaseResults    []PhaseResult    `json:"phase_results"`
	Context         map[string]any   `json:"context"`
	Errors          []ExecutionError `json:"errors"`
	PhasesCompleted int              `json:"phases_completed"`
	TotalPhases     int              `json:"total_phases"`

	// DSLResults holds one entry per ```dsl block evaluated after the phase
	// loop. Nil when the protocol carries no blocks.
	DSLResults []DSLBlockResult `json:"dsl_results,omitempty"`
}
