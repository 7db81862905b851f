package pipeline

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"omrpipe/internal/logging"
	"omrpipe/internal/services"
)

// BatchResult pairs a source with its report or the error that stopped it.
type BatchResult struct {
	Source string
	Report Report
	Err    error
}

// Batch processes sources with at most limit documents in flight. Results keep
// the order of sources. One document failing does not stop the others; only
// context cancellation does.
func (p *Processor) Batch(ctx context.Context, sources []string, limit int) []BatchResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]BatchResult, len(sources))
	ctx = services.WithBatchID(ctx, uuid.NewString())
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i, source := range sources {
		results[i].Source = source
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			report, err := p.Process(groupCtx, source)
			results[i].Report = report
			results[i].Err = err
			return nil
		})
	}
	_ = group.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Err == nil && r.Report.Succeeded() {
			succeeded++
		}
	}
	logging.WithContext(ctx, p.logger).Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("documents", len(sources)),
		logging.Int("succeeded", succeeded),
		logging.Int("concurrency", limit),
	)
	return results
}
