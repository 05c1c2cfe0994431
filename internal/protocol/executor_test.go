package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()
	reg, _ := newTestRegistry(map[string]string{
		"Protocol_Deploy.md": sampleProtocol,
		"Protocol_Flat.md":   "# Flat\n\nNo phases.\n",
	})
	return NewExecutor(reg, opts...)
}

func TestExecute_AllPhasesComplete(t *testing.T) {
	exec := newTestExecutor(t)

	rec, err := exec.Execute(context.Background(), "Deployment Checklist", map[string]any{"test": true})
	require.NoError(t, err)

	assert.Equal(t, "Deployment Checklist", rec.ProtocolName)
	assert.Equal(t, 3, rec.TotalPhases)
	assert.Equal(t, 3, rec.PhasesCompleted)
	assert.Empty(t, rec.Errors)
	require.Len(t, rec.PhaseResults, 3)
	for i, pr := range rec.PhaseResults {
		assert.Equal(t, i+1, pr.Phase)
		assert.Equal(t, PhaseCompleted, pr.Status)
		assert.Equal(t, 2, pr.StepsEvaluated)
	}
	assert.GreaterOrEqual(t, rec.Duration, time.Duration(0))
}

func TestExecute_UnknownProtocolIsNotFound(t *testing.T) {
	exec := newTestExecutor(t)

	for _, ctxMap := range []map[string]any{nil, {}, {"k": "v"}} {
		rec, err := exec.Execute(context.Background(), "NonExistent", ctxMap)
		assert.Nil(t, rec)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
}

func TestExecute_ZeroPhaseProtocol(t *testing.T) {
	exec := newTestExecutor(t)

	rec, err := exec.Execute(context.Background(), "Flat", nil)
	require.NoError(t, err)
	assert.Zero(t, rec.TotalPhases)
	assert.Zero(t, rec.PhasesCompleted)
	assert.Empty(t, rec.PhaseResults)
	assert.NotNil(t, rec.PhaseResults)
	assert.Empty(t, rec.Errors)
}

func TestExecute_ContextMerge(t *testing.T) {
	exec := newTestExecutor(t)

	input := map[string]any{
		"test":          true,
		"protocol_name": "caller override",
	}
	rec, err := exec.Execute(context.Background(), "Deployment Checklist", input)
	require.NoError(t, err)

	// Caller keys survive unchanged and win over engine defaults
	assert.Equal(t, true, rec.Context["test"])
	assert.Equal(t, "caller override", rec.Context["protocol_name"])

	// Engine defaults are added when absent
	assert.Equal(t, rec.ExecutionID, rec.Context["execution_id"])

	// The input map is never mutated
	assert.Len(t, input, 2)
}

func TestExecute_SoftFailAttemptsEveryPhase(t *testing.T) {
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		if phase.Index == 2 {
			return "", fmt.Errorf("staging push rejected")
		}
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler))

	rec, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err, "phase failures must not surface as errors")

	assert.Equal(t, 3, rec.TotalPhases)
	assert.Equal(t, 2, rec.PhasesCompleted)
	require.Len(t, rec.PhaseResults, 3)
	assert.Equal(t, PhaseCompleted, rec.PhaseResults[0].Status)
	assert.Equal(t, PhaseFailed, rec.PhaseResults[1].Status)
	assert.Equal(t, PhaseCompleted, rec.PhaseResults[2].Status)

	require.Len(t, rec.Errors, 1)
	assert.Equal(t, 2, rec.Errors[0].Phase)
	assert.Contains(t, rec.Errors[0].Reason, "staging push rejected")
}

func TestExecute_HaltOnFailureSkipsRemainingPhases(t *testing.T) {
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		if phase.Index == 1 {
			return "", fmt.Errorf("setup blew up")
		}
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler), WithHaltOnFailure(true))

	rec, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)

	assert.Equal(t, 0, rec.PhasesCompleted)
	require.Len(t, rec.PhaseResults, 3)
	assert.Equal(t, PhaseFailed, rec.PhaseResults[0].Status)
	assert.Equal(t, PhaseSkipped, rec.PhaseResults[1].Status)
	assert.Equal(t, PhaseSkipped, rec.PhaseResults[2].Status)
	assert.Len(t, rec.Errors, 3)
}

func TestExecute_CancellationReturnsCompleteRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		if phase.Index == 1 {
			cancel() // Cancel after the first phase ran
		}
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler))

	rec, err := exec.Execute(ctx, "Deployment Checklist", nil)
	require.NoError(t, err)

	// Phase 1 completed before cancellation; the rest are recorded as skipped
	assert.Equal(t, 1, rec.PhasesCompleted)
	require.Len(t, rec.PhaseResults, 3)
	assert.Equal(t, PhaseCompleted, rec.PhaseResults[0].Status)
	assert.Equal(t, PhaseSkipped, rec.PhaseResults[1].Status)
	assert.Equal(t, PhaseSkipped, rec.PhaseResults[2].Status)
	assert.Equal(t, 3, rec.TotalPhases)
}

func TestExecute_ConcurrentRunsAreIndependent(t *testing.T) {
	exec := newTestExecutor(t)

	const runs = 8
	records := make([]*ExecutionRecord, runs)
	var wg sync.WaitGroup
	wg.Add(runs)
	for i := 0; i < runs; i++ {
		go func(i int) {
			defer wg.Done()
			rec, err := exec.Execute(context.Background(), "Deployment Checklist", map[string]any{"worker": i})
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			records[i] = rec
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool, runs)
	for i, rec := range records {
		require.NotNil(t, rec, "worker %d got no record", i)
		assert.False(t, ids[rec.ExecutionID], "duplicate execution_id %s", rec.ExecutionID)
		ids[rec.ExecutionID] = true
		assert.Equal(t, i, rec.Context["worker"])
	}
}

func TestExecute_RecorderFailureIsBestEffort(t *testing.T) {
	rec := &stubRecorder{err: fmt.Errorf("disk full")}
	exec := newTestExecutor(t, WithRecorder(rec))

	record, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)
	assert.NotNil(t, record)
	assert.Equal(t, int32(1), rec.calls.Load())
}

func TestExecute_RecorderReceivesFinishedRecord(t *testing.T) {
	rec := &stubRecorder{}
	exec := newTestExecutor(t, WithRecorder(rec))

	record, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)
	require.NotNil(t, rec.last)
	assert.Equal(t, record.ExecutionID, rec.last.ExecutionID)
	assert.Equal(t, record.TotalPhases, rec.last.TotalPhases)
}

func TestExecute_PhaseTimeoutBoundsHandler(t *testing.T) {
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		if phase.Index == 2 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler), WithPhaseTimeout(20*time.Millisecond))

	rec, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, rec.PhasesCompleted)
	require.Len(t, rec.PhaseResults, 3)
	assert.Equal(t, PhaseFailed, rec.PhaseResults[1].Status)
	assert.Contains(t, rec.PhaseResults[1].Detail, "deadline exceeded")

	// Remaining phases still run; the deadline is per handler invocation.
	assert.Equal(t, PhaseCompleted, rec.PhaseResults[2].Status)
}

func TestExecute_PhaseTimeoutReachesHandlerContext(t *testing.T) {
	deadlines := 0
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		if _, ok := ctx.Deadline(); ok {
			deadlines++
		}
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler), WithPhaseTimeout(time.Minute))

	rec, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.PhasesCompleted)
	assert.Equal(t, 3, deadlines, "every handler invocation must see the configured deadline")
}

func TestExecute_NoPhaseTimeoutByDefault(t *testing.T) {
	handler := PhaseHandlerFunc(func(ctx context.Context, phase Phase) (string, error) {
		_, ok := ctx.Deadline()
		assert.False(t, ok)
		return "ok", nil
	})
	exec := newTestExecutor(t, WithPhaseHandler(handler))

	_, err := exec.Execute(context.Background(), "Deployment Checklist", nil)
	require.NoError(t, err)
}
