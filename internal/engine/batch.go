package engine

import (
	"context"
	"log/slog"

	"github.com/Veraticus/slipcheck/internal/model"
	"golang.org/x/sync/errgroup"
)

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Decision *model.VerificationDecision
	Err      error
	Index    int
}

// VerifyBatch verifies requests on a pool of workers. Results come back in
// request order; one failing request does not stop the others. onResult, if
// set, is called from worker goroutines as each request finishes.
func (c *Coordinator) VerifyBatch(ctx context.Context, requests []VerifyRequest, workers int, onResult func(BatchResult)) ([]BatchResult, error) {
	if workers <= 0 {
		workers = c.config.Workers
	}

	results := make([]BatchResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, req := range requests {
		if err := gctx.Err(); err != nil {
			results[i] = BatchResult{Index: i, Err: err}
			continue
		}
		g.Go(func() error {
			decision, err := c.VerifyPayment(gctx, req)
			results[i] = BatchResult{Index: i, Decision: decision, Err: err}
			if err != nil {
				slog.Warn("Batch request failed",
					"index", i,
					"invoice_id", req.InvoiceID,
					"error", err)
			}
			if onResult != nil {
				onResult(results[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
