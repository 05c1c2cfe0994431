package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentsuite/internal/protocol"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(executionID, name string) *protocol.ExecutionRecord {
	return &protocol.ExecutionRecord{
		ExecutionID:  executionID,
		ProtocolName: name,
		StartedAt:    time.Now().UTC().Truncate(time.Second),
		Duration:     1500 * time.Millisecond,
		PhaseResults: []protocol.PhaseResult{
			{Phase: 1, Title: "Prepare", Status: protocol.PhaseCompleted, Detail: "evaluated 2 steps", StepsEvaluated: 2, ExecutionTime: 0.5},
			{Phase: 2, Title: "Verify", Status: protocol.PhaseFailed, Detail: "verification failed", StepsEvaluated: 3, ExecutionTime: 1.0},
		},
		Context:         map[string]any{"protocol_name": name, "ticket": "OPS-42"},
		Errors:          []protocol.ExecutionError{{Phase: 2, Reason: "verification failed"}},
		PhasesCompleted: 1,
		TotalPhases:     2,
		DSLResults: []protocol.DSLBlockResult{
			{Parsed: true, CommandsExecuted: 1, Status: "completed", Results: []protocol.DSLCommandResult{
				{Command: "validate", Result: "Validation executed", Status: "success"},
			}},
		},
	}
}

func TestHistoryStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("exec_abc", "Deployment Checklist")
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, err := s.GetRecord(ctx, "exec_abc")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, rec.ExecutionID, got.ExecutionID)
	assert.Equal(t, rec.ProtocolName, got.ProtocolName)
	assert.Equal(t, rec.Duration, got.Duration)
	assert.Equal(t, rec.PhasesCompleted, got.PhasesCompleted)
	assert.Equal(t, rec.TotalPhases, got.TotalPhases)
	assert.Equal(t, "OPS-42", got.Context["ticket"])

	require.Len(t, got.PhaseResults, 2)
	assert.Equal(t, "Prepare", got.PhaseResults[0].Title)
	assert.Equal(t, protocol.PhaseFailed, got.PhaseResults[1].Status)
	assert.Equal(t, 3, got.PhaseResults[1].StepsEvaluated)

	require.Len(t, got.Errors, 1)
	assert.Equal(t, 2, got.Errors[0].Phase)

	require.Len(t, got.DSLResults, 1)
	assert.Equal(t, "validate", got.DSLResults[0].Results[0].Command)
}

func TestHistoryStore_GetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetRecord(context.Background(), "exec_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHistoryStore_DuplicateExecutionIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, sampleRecord("exec_dup", "A")))
	assert.Error(t, s.SaveRecord(ctx, sampleRecord("exec_dup", "A")))
}

func TestHistoryStore_RecentOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"exec_1", "exec_2", "exec_3"} {
		rec := sampleRecord(id, "Release")
		rec.StartedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.SaveRecord(ctx, rec))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "exec_3", recent[0].ExecutionID)
	assert.Equal(t, "exec_2", recent[1].ExecutionID)
}

func TestHistoryStore_CountByProtocol(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecord(ctx, sampleRecord("exec_a", "Release")))
	require.NoError(t, s.SaveRecord(ctx, sampleRecord("exec_b", "Release")))
	require.NoError(t, s.SaveRecord(ctx, sampleRecord("exec_c", "Incident Response")))

	counts, err := s.CountByProtocol(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Release": 2, "Incident Response": 1}, counts)
}

func TestHistoryStore_ReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s, err := NewHistoryStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRecord(context.Background(), sampleRecord("exec_keep", "Release")))
	require.NoError(t, s.Close())

	s2, err := NewHistoryStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetRecord(context.Background(), "exec_keep")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Release", got.ProtocolName)
}
