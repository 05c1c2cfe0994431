package protocol

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentsuite/internal/logging"
)

// PhaseHandler gives phases real side effects. When a caller injects one,
// each phase is handed to Run and its outcome (or error) becomes the phase
// result. Without a handler the engine records a tracking outcome only.
type PhaseHandler interface {
	Run(ctx context.Context, phase Phase) (string, error)
}

// PhaseHandlerFunc adapts a function to the PhaseHandler interface.
type PhaseHandlerFunc func(ctx context.Context, phase Phase) (string, error)

func (f PhaseHandlerFunc) Run(ctx context.Context, phase Phase) (string, error) {
	return f(ctx, phase)
}

// Recorder persists finished execution records. Persistence is best-effort:
// a recorder failure is logged, never surfaced to the Execute caller.
type Recorder interface {
	SaveRecord(ctx context.Context, rec *ExecutionRecord) error
}

// Executor drives tracked execution attempts against protocols resolved
// through a Registry. Executors are stateless between calls: every Execute
// owns its record exclusively and shares nothing with concurrent calls
// except the Registry's cache.
type Executor struct {
	registry      *Registry
	handler       PhaseHandler
	recorder      Recorder
	haltOnFailure bool
	phaseTimeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPhaseHandler injects a handler giving phases real side effects.
func WithPhaseHandler(h PhaseHandler) ExecutorOption {
	return func(e *Executor) { e.handler = h }
}

// WithRecorder attaches a history recorder for finished records.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithHaltOnFailure aborts remaining phases after the first phase failure.
// The default is soft-fail: every phase is attempted and failures accumulate
// in the record, because a protocol run is a diagnostic trace of how far a
// workflow was followed, not a transaction.
func WithHaltOnFailure(halt bool) ExecutorOption {
	return func(e *Executor) { e.haltOnFailure = halt }
}

// WithPhaseTimeout bounds a single phase handler invocation. A handler that
// overruns sees its context cancelled and the phase is recorded as failed.
// Zero means no per-phase deadline.
func WithPhaseTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.phaseTimeout = d }
}

// NewExecutor creates an Executor over the given registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one tracked attempt of the named protocol.
//
// Resolution failure is the only fatal failure mode and carries ErrNotFound.
// Everything that goes wrong per phase is data inside the returned record.
// The caller-supplied context mapping is merged with engine defaults
// (execution_id, protocol_name); caller keys always win and the input map is
// never mutated. The returned record is fully populated and owned by the
// caller; the engine keeps no reference.
func (e *Executor) Execute(ctx context.Context, name string, callerCtx map[string]any) (*ExecutionRecord, error) {
	start := time.Now()

	proto, err := e.registry.Resolve(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("execute %q: %w", name, err)
	}

	rec := &ExecutionRecord{
		ExecutionID:  "exec_" + uuid.NewString(),
		ProtocolName: proto.Name,
		StartedAt:    start,
		PhaseResults: []PhaseResult{},
		Errors:       []ExecutionError{},
		TotalPhases:  len(proto.Phases),
	}
	rec.Context = mergeContext(callerCtx, map[string]any{
		"execution_id":  rec.ExecutionID,
		"protocol_name": proto.Name,
	})

	logging.Executor("starting execution %s of protocol %q (%d phases)",
		rec.ExecutionID, proto.Name, rec.TotalPhases)

	halted := false
	for _, phase := range proto.Phases {
		if halted || ctx.Err() != nil {
			reason := "halted after earlier phase failure"
			if err := ctx.Err(); err != nil {
				reason = fmt.Sprintf("cancelled: %v", err)
			}
			rec.PhaseResults = append(rec.PhaseResults, PhaseResult{
				Phase:  phase.Index,
				Title:  phase.Title,
				Status: PhaseSkipped,
				Detail: reason,
			})
			rec.Errors = append(rec.Errors, ExecutionError{Phase: phase.Index, Reason: reason})
			continue
		}

		result := e.runPhase(ctx, phase)
		rec.PhaseResults = append(rec.PhaseResults, result)
		if result.Status == PhaseCompleted {
			rec.PhasesCompleted++
		} else {
			rec.Errors = append(rec.Errors, ExecutionError{
				Phase:  phase.Index,
				Reason: result.Detail,
			})
			logging.ExecutorError("execution %s phase %d failed: %s",
				rec.ExecutionID, phase.Index, result.Detail)
			if e.haltOnFailure {
				halted = true
			}
		}
	}

	// Directive blocks run after the phase loop, once per block, and land in
	// the record as data regardless of phase outcomes.
	if len(proto.DSLBlocks) > 0 {
		rec.DSLResults = make([]DSLBlockResult, 0, len(proto.DSLBlocks))
		for _, block := range proto.DSLBlocks {
			rec.DSLResults = append(rec.DSLResults, EvalDSLBlock(block))
		}
	}

	rec.Duration = time.Since(start)

	logging.Executor("execution %s finished: %d/%d phases in %v (%d errors)",
		rec.ExecutionID, rec.PhasesCompleted, rec.TotalPhases, rec.Duration, len(rec.Errors))

	if e.recorder != nil {
		if err := e.recorder.SaveRecord(ctx, rec); err != nil {
			logging.StoreError("failed to persist execution %s: %v", rec.ExecutionID, err)
		}
	}

	return rec, nil
}

// runPhase attempts one phase and reports the outcome as data.
func (e *Executor) runPhase(ctx context.Context, phase Phase) PhaseResult {
	phaseStart := time.Now()
	result := PhaseResult{
		Phase:          phase.Index,
		Title:          phase.Title,
		StepsEvaluated: len(phase.Steps),
	}

	if e.handler == nil {
		// Tracked checkpoint: the steps were evaluated, nothing external ran.
		result.Status = PhaseCompleted
		result.Detail = fmt.Sprintf("evaluated %d steps", len(phase.Steps))
		result.ExecutionTime = time.Since(phaseStart).Seconds()
		return result
	}

	if e.phaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.phaseTimeout)
		defer cancel()
	}

	detail, err := e.handler.Run(ctx, phase)
	result.ExecutionTime = time.Since(phaseStart).Seconds()
	if err != nil {
		result.Status = PhaseFailed
		result.Detail = err.Error()
		return result
	}
	result.Status = PhaseCompleted
	result.Detail = detail
	return result
}

// mergeContext copies the caller mapping and fills in engine defaults for
// keys the caller did not supply. Caller keys always take precedence.
func mergeContext(callerCtx, defaults map[string]any) map[string]any {
	merged := make(map[string]any, len(callerCtx)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range callerCtx {
		merged[k] = v
	}
	return merged
}
