// Package state keeps the history of validation runs in SQLite so that
// successive generation rounds for the same input can be traced.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapocsf/internal/report"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Kind is the validator variant that produced a run.
type Kind string

// Run kinds.
const (
	KindEntity      Kind = "entity"
	KindTransformer Kind = "transformer"
)

// Run is one persisted validation.
type Run struct {
	ID        string
	Kind      Kind
	Category  string // transformer runs only
	Language  string
	Input     string
	Passed    bool
	Stage     report.Stage
	CreatedAt time.Time
	Report    *report.Report
	Code      string // the validated code in file format
}

// NewRun builds a run record from a finished report. The run takes the
// report's ID.
func NewRun(kind Kind, category, language, code string, rep *report.Report) *Run {
	return &Run{
		ID:       rep.ID,
		Kind:     kind,
		Category: category,
		Language: language,
		Input:    rep.Input,
		Passed:   rep.Passed,
		Stage:    rep.Stage,
		Report:   rep,
		Code:     code,
	}
}

// Store persists runs and the links between iterations.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	LinkIteration(ctx context.Context, runID, parentID string) error
	Lineage(ctx context.Context, runID string) ([]*Run, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
