package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review-console/internal/domain"
)

func TestPrometheus_DomainCounters(t *testing.T) {
	m := New()

	m.TransitionCompleted(domain.TransitionApprove, domain.SourceSingle, domain.OutcomeSucceeded)
	m.TransitionCompleted(domain.TransitionApprove, domain.SourceSingle, domain.OutcomeSucceeded)
	m.TransitionCompleted(domain.TransitionReject, domain.SourceUndo, domain.OutcomeFailed)
	m.AccountProvisioned("duplicate")
	m.BulkCompleted(domain.TransitionReject, 3, 1)
	m.UndoInvoked(domain.OutcomeSucceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "single", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("reject", "undo", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.accounts.WithLabelValues("duplicate")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.bulkItems.WithLabelValues("reject", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bulkItems.WithLabelValues("reject", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.undo.WithLabelValues("succeeded")))
}

func TestPrometheus_MiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/console/applications/:id/history", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.POST("/console/applications/:id/approve", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "busy")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})

	for _, path := range []string{"/console/applications/1/history", "/console/applications/2/history"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/console/applications/1/approve", nil))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/console/applications/:id/history", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/console/applications/:id/approve", "409")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestPrometheus_Handler(t *testing.T) {
	m := New()
	m.UndoInvoked(domain.OutcomeFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `review_console_undo_invocations_total{outcome="failed"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
