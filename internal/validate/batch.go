package validate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapocsf/internal/report"
)

// RunAll runs independent validations with at most concurrency in flight and
// returns their reports in input order. concurrency <= 0 means no limit.
func RunAll(ctx context.Context, validators []Validator, concurrency int) []*report.Report {
	reports := make([]*report.Report, len(validators))

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, v := range validators {
		g.Go(func() error {
			reports[i] = v.Validate(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return reports
}
