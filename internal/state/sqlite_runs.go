package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapocsf/internal/report"
)

const runColumns = `id, kind, category, language, input, passed, stage, created_at, report_json, code`

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// SaveRun inserts or replaces a run. A missing ID or creation time is filled in.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if run.ID == "" {
		run.ID = generateID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	reportJSON := []byte("null")
	if run.Report != nil {
		var err error
		if reportJSON, err = json.Marshal(run.Report); err != nil {
			return fmt.Errorf("failed to encode report for run %s: %w", run.ID, err)
		}
	}

	s.logger.Debug("saving run", slog.String("id", run.ID), slog.String("kind", string(run.Kind)), slog.Bool("passed", run.Passed))

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.Category, run.Language, run.Input, run.Passed,
		string(run.Stage), run.CreatedAt.Format(time.RFC3339Nano), string(reportJSON), run.Code,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run        Run
		kind       string
		stage      string
		createdAt  string
		reportJSON string
	)
	if err := sc.Scan(&run.ID, &kind, &run.Category, &run.Language, &run.Input, &run.Passed,
		&stage, &createdAt, &reportJSON, &run.Code); err != nil {
		return nil, err
	}
	run.Kind = Kind(kind)
	run.Stage = report.Stage(stage)

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: invalid created_at %q: %w", run.ID, createdAt, err)
	}
	run.CreatedAt = t

	if reportJSON != "" && reportJSON != "null" {
		var rep report.Report
		if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil {
			return nil, fmt.Errorf("run %s: invalid report: %w", run.ID, err)
		}
		run.Report = &rep
	}
	return &run, nil
}
