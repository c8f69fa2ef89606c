package state

import (
	"context"
	"fmt"
	"log/slog"
)

// maxLineageDepth bounds the parent walk.
const maxLineageDepth = 1000

// LinkIteration records that runID was generated from the feedback of
// parentID. A run has at most one parent; linking again replaces it.
func (s *SQLiteStore) LinkIteration(ctx context.Context, runID, parentID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if runID == parentID {
		return fmt.Errorf("run %s cannot be its own parent", runID)
	}

	// Refuse links that would close a cycle.
	chain, err := s.Lineage(ctx, parentID)
	if err != nil {
		return err
	}
	for _, r := range chain {
		if r.ID == runID {
			return fmt.Errorf("linking %s to %s would create a cycle", runID, parentID)
		}
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}

	s.logger.Debug("linking iteration", slog.String("run", runID), slog.String("parent", parentID))
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO iterations (run_id, parent_run_id) VALUES (?, ?)`, runID, parentID)
	if err != nil {
		return fmt.Errorf("failed to link iteration: %w", err)
	}
	return nil
}

// Lineage returns the chain of runs that led to runID, oldest first and
// ending with runID itself.
func (s *SQLiteStore) Lineage(ctx context.Context, runID string) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE chain(id, depth) AS (
			SELECT ?, 0
			UNION ALL
			SELECT i.parent_run_id, c.depth + 1
			FROM iterations i JOIN chain c ON i.run_id = c.id
			WHERE c.depth < ?
		)
		SELECT r.id, r.kind, r.category, r.language, r.input, r.passed, r.stage, r.created_at, r.report_json, r.code
		FROM chain c JOIN runs r ON r.id = c.id
		ORDER BY c.depth DESC`, runID, maxLineageDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineage: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return runs, nil
}
