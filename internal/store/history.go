// Package store persists finished execution records to SQLite so that past
// protocol runs stay auditable across process restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"agentsuite/internal/logging"
	"agentsuite/internal/protocol"
)

// HistoryStore records execution attempts in a SQLite database.
// It implements protocol.Recorder.
type HistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewHistoryStore initializes the SQLite database at the given path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &HistoryStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the required tables.
func (s *HistoryStore) initialize() error {
	executionsTable := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL UNIQUE,
		protocol_name TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		phases_completed INTEGER NOT NULL,
		total_phases INTEGER NOT NULL,
		context_json TEXT,
		errors_json TEXT,
		dsl_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_exec_protocol ON executions(protocol_name);
	CREATE INDEX IF NOT EXISTS idx_exec_started ON executions(started_at);
	`

	phaseResultsTable := `
	CREATE TABLE IF NOT EXISTS phase_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		execution_id TEXT NOT NULL,
		phase_index INTEGER NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		detail TEXT,
		steps_evaluated INTEGER NOT NULL DEFAULT 0,
		execution_time REAL NOT NULL DEFAULT 0,
		UNIQUE(execution_id, phase_index)
	);
	CREATE INDEX IF NOT EXISTS idx_phase_exec ON phase_results(execution_id);
	`

	for _, table := range []string{executionsTable, phaseResultsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// SaveRecord persists one finished execution record.
func (s *HistoryStore) SaveRecord(ctx context.Context, rec *protocol.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	errorsJSON, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("failed to encode errors: %w", err)
	}
	dslJSON, err := json.Marshal(rec.DSLResults)
	if err != nil {
		return fmt.Errorf("failed to encode dsl results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO executions
			(execution_id, protocol_name, started_at, duration_ms,
			 phases_completed, total_phases, context_json, errors_json, dsl_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ExecutionID, rec.ProtocolName, rec.StartedAt.UTC(),
		rec.Duration.Milliseconds(), rec.PhasesCompleted, rec.TotalPhases,
		string(contextJSON), string(errorsJSON), string(dslJSON))
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	for _, pr := range rec.PhaseResults {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO phase_results
				(execution_id, phase_index, title, status, detail, steps_evaluated, execution_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ExecutionID, pr.Phase, pr.Title, string(pr.Status), pr.Detail,
			pr.StepsEvaluated, pr.ExecutionTime)
		if err != nil {
			return fmt.Errorf("failed to insert phase result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution: %w", err)
	}

	logging.Store("recorded execution %s (%s)", rec.ExecutionID, rec.ProtocolName)
	return nil
}

// GetRecord loads one execution record by execution ID.
// Returns (nil, nil) when no such execution exists.
func (s *HistoryStore) GetRecord(ctx context.Context, executionID string) (*protocol.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, protocol_name, started_at, duration_ms,
		       phases_completed, total_phases, context_json, errors_json, dsl_json
		FROM executions WHERE execution_id = ?`, executionID)

	rec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT phase_index, title, status, detail, steps_evaluated, execution_time
		FROM phase_results WHERE execution_id = ? ORDER BY phase_index`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pr protocol.PhaseResult
		var status string
		if err := rows.Scan(&pr.Phase, &pr.Title, &status, &pr.Detail,
			&pr.StepsEvaluated, &pr.ExecutionTime); err != nil {
			return nil, fmt.Errorf("failed to scan phase result: %w", err)
		}
		pr.Status = protocol.PhaseStatus(status)
		rec.PhaseResults = append(rec.PhaseResults, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Recent returns the most recent execution records, newest first, without
// their per-phase detail rows.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]*protocol.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, protocol_name, started_at, duration_ms,
		       phases_completed, total_phases, context_json, errors_json, dsl_json
		FROM executions ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var out []*protocol.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByProtocol returns how many executions were recorded per protocol.
func (s *HistoryStore) CountByProtocol(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT protocol_name, COUNT(*) FROM executions GROUP BY protocol_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*protocol.ExecutionRecord, error) {
	var rec protocol.ExecutionRecord
	var startedAt time.Time
	var durationMS int64
	var contextJSON, errorsJSON, dslJSON string

	err := row.Scan(&rec.ExecutionID, &rec.ProtocolName, &startedAt, &durationMS,
		&rec.PhasesCompleted, &rec.TotalPhases, &contextJSON, &errorsJSON, &dslJSON)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	rec.StartedAt = startedAt
	rec.Duration = time.Duration(durationMS) * time.Millisecond

	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to decode context: %w", err)
		}
	}
	rec.Errors = []protocol.ExecutionError{}
	if errorsJSON != "" {
		if err := json.Unmarshal([]byte(errorsJSON), &rec.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	if dslJSON != "" {
		if err := json.Unmarshal([]byte(dslJSON), &rec.DSLResults); err != nil {
			return nil, fmt.Errorf("failed to decode dsl results: %w", err)
		}
	}
	rec.PhaseResults = []protocol.PhaseResult{}

	return &rec, nil
}
