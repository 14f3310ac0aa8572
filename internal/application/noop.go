package application

import (
	"context"
	"time"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// The no-op collaborators below stand in for optional infrastructure
// (journal, lease, notifier, metrics) when it is not configured.

type noopJournal struct{}

func (noopJournal) Record(context.Context, domain.Decision) error { return nil }

func (noopJournal) ListByApplication(context.Context, string) ([]domain.Decision, error) {
	return nil, nil
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

type noopMetrics struct{}

func (noopMetrics) TransitionCompleted(domain.TransitionKind, domain.DecisionSource, domain.DecisionOutcome) {
}

func (noopMetrics) AccountProvisioned(string) {}

func (noopMetrics) BulkCompleted(domain.TransitionKind, int, int) {}

func (noopMetrics) UndoInvoked(domain.DecisionOutcome) {}

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}
func (noopLogger) Debug(context.Context, string, ...any) {}

var (
	_ ports.DecisionRepository = noopJournal{}
	_ ports.TransitionLocker   = noopLocker{}
	_ ports.Metrics            = noopMetrics{}
	_ ports.Logger             = noopLogger{}
)

func orLogger(l ports.Logger) ports.Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

func orMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
