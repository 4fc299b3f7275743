// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package audit persists validation outcomes so a result remains queryable
// after its caller stopped waiting for it.
// Implements: prd004-audit-history (R1-R4);
//
//	docs/ARCHITECTURE § Audit History.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/proofbridge/internal/retry"
	"github.com/pdiddy/proofbridge/pkg/types"
)

// Store manages the validation history SQLite database. A nil *Store is a
// valid no-op sink: records are dropped and Close does nothing, so the
// orchestrator never branches on whether auditing is enabled.
type Store struct {
	db *sql.DB

	closeMu sync.Mutex
	closed  bool
}

// Open opens or creates the history database at path, creating parent
// directories and the schema as needed (R1.1, R1.2).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// Schema bootstrap hits SQLITE_BUSY when another process holds the WAL
	// write lock, so it gets a bounded retry.
	s := &Store{db: db}
	if err := retry.Do(context.Background(), 0, s.createSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection. Safe on a nil store and safe to
// call more than once.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS validations (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			citation_id TEXT NOT NULL,
			backend TEXT NOT NULL,
			valid INTEGER NOT NULL,
			confidence REAL NOT NULL,
			duration_ms INTEGER NOT NULL,
			timed_out INTEGER NOT NULL,
			backends TEXT,
			result TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_validations_job ON validations(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_validations_citation ON validations(citation_id)`,
		`CREATE TABLE IF NOT EXISTS consistency_checks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			consistent INTEGER NOT NULL,
			confidence REAL NOT NULL,
			citations TEXT,
			contradictions INTEGER NOT NULL,
			verdict TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordValidation persists one completed validation outcome (R2.1). The
// full result is stored as JSON next to the indexed columns. A nil store
// or nil result drops the record.
func (s *Store) RecordValidation(ctx context.Context, res *types.ProofValidationResult) error {
	if s == nil || res == nil {
		return nil
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	backends := make([]string, len(res.BackendsUsed))
	for i, b := range res.BackendsUsed {
		backends[i] = string(b)
	}

	timedOut := res.PrimaryValidation.Resources.TimedOut
	for _, cv := range res.CrossValidation {
		timedOut = timedOut || cv.Resources.TimedOut
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO validations (job_id, citation_id, backend, valid, confidence,
			duration_ms, timed_out, backends, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.JobID, res.CitationID, string(res.PrimaryValidation.Backend),
		res.PrimaryValidation.Valid, res.PrimaryValidation.Confidence,
		res.TotalDuration.Milliseconds(), timedOut,
		strings.Join(backends, ","), string(resultJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting validation: %w", err)
	}
	return nil
}

// RecordConsistency persists one cross-citation consistency verdict (R2.2).
// A nil store or nil verdict drops the record.
func (s *Store) RecordConsistency(ctx context.Context, citationIDs []string, verdict *types.ConsistencyVerdict) error {
	if s == nil || verdict == nil {
		return nil
	}

	verdictJSON, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("marshaling verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO consistency_checks (consistent, confidence, citations,
			contradictions, verdict, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		verdict.Consistent, verdict.ConfidenceScore,
		strings.Join(citationIDs, ","), len(verdict.Contradictions),
		string(verdictJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting consistency check: %w", err)
	}
	return nil
}

// ValidationRecord is one row of validation history as returned by Recent.
type ValidationRecord struct {
	JobID      string              `json:"job_id" yaml:"job_id"`
	CitationID string              `json:"citation_id" yaml:"citation_id"`
	Backend    types.BackendKind   `json:"backend" yaml:"backend"`
	Valid      bool                `json:"valid" yaml:"valid"`
	Confidence float64             `json:"confidence" yaml:"confidence"`
	Duration   time.Duration       `json:"duration" yaml:"duration"`
	TimedOut   bool                `json:"timed_out" yaml:"timed_out"`
	Backends   []types.BackendKind `json:"backends,omitempty" yaml:"backends,omitempty"`
	CreatedAt  time.Time           `json:"created_at" yaml:"created_at"`
}

// Recent returns up to limit validation records, newest first (R3.1).
// A non-positive limit uses 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]ValidationRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, citation_id, backend, valid, confidence, duration_ms,
			timed_out, backends, created_at
		 FROM validations ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying validations: %w", err)
	}
	defer rows.Close()

	var records []ValidationRecord
	for rows.Next() {
		var (
			r           ValidationRecord
			backend     string
			durationMS  int64
			backendsCSV sql.NullString
			createdAt   string
		)
		if err := rows.Scan(
			&r.JobID, &r.CitationID, &backend, &r.Valid, &r.Confidence,
			&durationMS, &r.TimedOut, &backendsCSV, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		r.Backend = types.BackendKind(backend)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if backendsCSV.Valid && backendsCSV.String != "" {
			for _, b := range strings.Split(backendsCSV.String, ",") {
				r.Backends = append(r.Backends, types.BackendKind(b))
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}

		records = append(records, r)
	}
	return records, rows.Err()
}

// Result returns the stored result for a job, so a caller that abandoned its
// wait can still retrieve the outcome (R3.2).
func (s *Store) Result(ctx context.Context, jobID string) (*types.ProofValidationResult, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM validations WHERE job_id = ? ORDER BY rowid DESC LIMIT 1`, jobID,
	).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("job %s not found", jobID)
		}
		return nil, fmt.Errorf("looking up job: %w", err)
	}

	var res types.ProofValidationResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("parsing stored result: %w", err)
	}
	return &res, nil
}

// HistorySummary aggregates the stored validation history (R3.3).
type HistorySummary struct {
	Validations  int           `json:"validations" yaml:"validations"`
	Valid        int           `json:"valid" yaml:"valid"`
	TimedOut     int           `json:"timed_out" yaml:"timed_out"`
	Consistency  int           `json:"consistency_checks" yaml:"consistency_checks"`
	SuccessRate  float64       `json:"success_rate" yaml:"success_rate"`
	MeanDuration time.Duration `json:"mean_duration" yaml:"mean_duration"`
}

// Summary computes counts, the success rate, and the mean job duration over
// the full history.
func (s *Store) Summary(ctx context.Context) (HistorySummary, error) {
	var (
		sum    HistorySummary
		meanMS sql.NullFloat64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(valid), 0), COALESCE(SUM(timed_out), 0),
			COALESCE(AVG(duration_ms), 0)
		 FROM validations`,
	).Scan(&sum.Validations, &sum.Valid, &sum.TimedOut, &meanMS)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("summarizing validations: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM consistency_checks`,
	).Scan(&sum.Consistency); err != nil {
		return HistorySummary{}, fmt.Errorf("summarizing consistency checks: %w", err)
	}

	if sum.Validations > 0 {
		sum.SuccessRate = float64(sum.Valid) / float64(sum.Validations)
	}
	if meanMS.Valid {
		sum.MeanDuration = time.Duration(meanMS.Float64 * float64(time.Millisecond))
	}
	return sum, nil
}
