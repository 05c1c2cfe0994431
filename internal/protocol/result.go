package protocol

// AssembleResult normalizes an execution record into the externally visible
// result mapping. Pure transformation, no I/O. Field presence is preserved
// even for empty collections: errors and phase_results are always present,
// never nil.
func AssembleResult(rec *ExecutionRecord) map[string]any {
	phaseResults := rec.PhaseResults
	if phaseResults == nil {
		phaseResults = []PhaseResult{}
	}
	errs := rec.Errors
	if errs == nil {
		errs = []ExecutionError{}
	}
	execCtx := rec.Context
	if execCtx == nil {
		execCtx = map[string]any{}
	}

	result := map[string]any{
		"protocol":         rec.ProtocolName,
		"execution_id":     rec.ExecutionID,
		"duration":         rec.Duration.Seconds(),
		"phases_completed": rec.PhasesCompleted,
		"total_phases":     rec.TotalPhases,
		"phase_results":    phaseResults,
		"context":          execCtx,
		"errors":           errs,
	}

	// Directive results appear only for protocols that carry ```dsl blocks;
	// the base shape stays field-exact for everything else.
	if len(rec.DSLResults) > 0 {
		result["dsl_results"] = rec.DSLResults
	}

	return result
}
