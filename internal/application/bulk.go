package application

import (
	"context"
	"strings"
	"sync"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// BulkReport lists every identifier of a batch by outcome, in input order.
type BulkReport struct {
	Kind      domain.TransitionKind `json:"kind"`
	Succeeded []string              `json:"succeeded"`
	Failed    []domain.ItemFailure  `json:"failed"`
}

// BulkCoordinator fans one transition out over many applications. It never
// provisions accounts and never records compensation entries.
type BulkCoordinator struct {
	review  *ReviewService
	metrics ports.Metrics
	logger  ports.Logger
}

func NewBulkCoordinator(review *ReviewService, metrics ports.Metrics, logger ports.Logger) *BulkCoordinator {
	return &BulkCoordinator{review: review, metrics: orMetrics(metrics), logger: orLogger(logger)}
}

// Run issues one remote transition per id concurrently and waits for all of
// them. Items that succeed stay applied even when others fail; any failure
// makes the returned error a *domain.BulkError.
func (b *BulkCoordinator) Run(ctx context.Context, cred domain.Credential, ids []string, kind domain.TransitionKind) (BulkReport, error) {
	if _, err := domain.ParseTransitionKind(string(kind)); err != nil {
		return BulkReport{}, err
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return BulkReport{}, domain.ErrEmptySelection
	}
	if !cred.Present() {
		return BulkReport{}, domain.ErrAuthRequired
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = b.review.RemoteTransition(ctx, cred, id, kind, domain.SourceBulk)
		}(i, id)
	}
	wg.Wait()

	report := BulkReport{Kind: kind, Succeeded: []string{}, Failed: []domain.ItemFailure{}}
	for i, id := range ids {
		if errs[i] != nil {
			report.Failed = append(report.Failed, domain.ItemFailure{ApplicationID: id, Message: errs[i].Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, id)
	}

	b.metrics.BulkCompleted(kind, len(report.Succeeded), len(report.Failed))
	b.logger.Info(ctx, "bulk transition finished", "kind", kind,
		"attempted", len(ids), "succeeded", len(report.Succeeded), "failed", len(report.Failed))

	if len(report.Failed) > 0 {
		return report, &domain.BulkError{Kind: kind, Attempted: len(ids), Failed: report.Failed}
	}
	return report, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
