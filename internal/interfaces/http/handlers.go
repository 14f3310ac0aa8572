package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"review-console/internal/application"
	"review-console/internal/domain"
	"review-console/internal/infrastructure/auth"
	"review-console/internal/ports"
)

type errorResponse struct {
	Error string `json:"error"`
}

func handleError(c echo.Context, err error) error {
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrIllegalTransition),
		errors.Is(err, domain.ErrEmptySelection),
		errors.Is(err, domain.ErrMissingContactInfo):
		return c.JSON(stdhttp.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrAuthRequired):
		return c.JSON(stdhttp.StatusUnauthorized, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrPermissionDeny):
		return c.JSON(stdhttp.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrTransitionInFlight):
		return c.JSON(stdhttp.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &remote):
		if remote.Status == stdhttp.StatusUnauthorized || remote.Status == stdhttp.StatusForbidden {
			return c.JSON(remote.Status, errorResponse{Error: remote.Message})
		}
		return c.JSON(stdhttp.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// ConsoleHandler serves one Console per authenticated operator.
type ConsoleHandler struct {
	consoles *application.ConsoleRegistry
	review   *application.ReviewService
	logger   ports.Logger
}

func NewConsoleHandler(consoles *application.ConsoleRegistry, review *application.ReviewService, logger ports.Logger) *ConsoleHandler {
	return &ConsoleHandler{consoles: consoles, review: review, logger: logger}
}

func (h *ConsoleHandler) console(c echo.Context) (*application.Console, domain.Credential) {
	cred := auth.CredentialFrom(c)
	return h.consoles.For(operatorOf(cred)), cred
}

func operatorOf(cred domain.Credential) string {
	if cred.Subject == "" {
		return "anonymous"
	}
	return cred.Subject
}

func (h *ConsoleHandler) Refresh(c echo.Context) error {
	console, cred := h.console(c)
	if err := console.Refresh(c.Request().Context(), cred); err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, console.View().Project())
}

func (h *ConsoleHandler) Applications(c echo.Context) error {
	console, _ := h.console(c)
	return c.JSON(stdhttp.StatusOK, console.View().Project())
}

type filtersRequest struct {
	Search   *string `json:"search"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
	From     *string `json:"from"`
	To       *string `json:"to"`
}

// UpdateFilters overlays the fields present in the body on the current
// filters. An empty string clears a field.
func (h *ConsoleHandler) UpdateFilters(c echo.Context) error {
	var req filtersRequest
	if err := bindValidated(c, filtersValidator, &req, false); err != nil {
		return handleError(c, err)
	}
	console, _ := h.console(c)
	filters := console.View().Query().Filters
	if req.Search != nil {
		filters.Search = *req.Search
	}
	if req.Category != nil {
		filters.Category = domain.Category(*req.Category)
	}
	if req.Status != nil {
		filters.Status = domain.Status(*req.Status)
	}
	if req.From != nil {
		from, err := parseBound(*req.From, false)
		if err != nil {
			return handleError(c, err)
		}
		filters.From = from
	}
	if req.To != nil {
		to, err := parseBound(*req.To, true)
		if err != nil {
			return handleError(c, err)
		}
		filters.To = to
	}
	if filters.From != nil && filters.To != nil && filters.From.After(*filters.To) {
		return handleError(c, errInvalid("from is after to"))
	}
	console.View().SetFilters(filters)
	return c.JSON(stdhttp.StatusOK, console.View().Project())
}

// parseBound accepts RFC 3339 timestamps or bare dates. A bare date used as
// an upper bound covers the whole day.
func parseBound(raw string, upper bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, errInvalid("date %q must be YYYY-MM-DD or RFC 3339", raw)
	}
	if upper {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

func (h *ConsoleHandler) ToggleSort(c echo.Context) error {
	field, err := application.ParseSortField(c.Param("field"))
	if err != nil {
		return handleError(c, err)
	}
	console, _ := h.console(c)
	console.View().ToggleSort(field)
	return c.JSON(stdhttp.StatusOK, console.View().Project())
}

func (h *ConsoleHandler) SetPage(c echo.Context) error {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		return handleError(c, errInvalid("page %q is not a number", c.Param("page")))
	}
	console, _ := h.console(c)
	console.View().SetPage(page)
	return c.JSON(stdhttp.StatusOK, console.View().Project())
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

type selectionResponse struct {
	IDs []string `json:"ids"`
}

func (h *ConsoleHandler) Selection(c echo.Context) error {
	console, _ := h.console(c)
	return c.JSON(stdhttp.StatusOK, selectionResponse{IDs: nonNil(console.Selection())})
}

func (h *ConsoleHandler) ReplaceSelection(c echo.Context) error {
	var req idsRequest
	if err := bindValidated(c, idsValidator, &req, false); err != nil {
		return handleError(c, err)
	}
	console, _ := h.console(c)
	return c.JSON(stdhttp.StatusOK, selectionResponse{IDs: nonNil(console.Select(req.IDs))})
}

func (h *ConsoleHandler) ClearSelection(c echo.Context) error {
	console, _ := h.console(c)
	console.ClearSelection()
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *ConsoleHandler) Approve(c echo.Context) error {
	return h.decide(c, domain.TransitionApprove)
}

func (h *ConsoleHandler) Reject(c echo.Context) error {
	return h.decide(c, domain.TransitionReject)
}

type provisioningFailure struct {
	Error   string                    `json:"error"`
	Outcome application.ReviewOutcome `json:"outcome"`
}

// decide answers 502 with the outcome attached when the approval landed but
// the account could not be created, so the operator still sees the new
// status and the warnings.
func (h *ConsoleHandler) decide(c echo.Context, kind domain.TransitionKind) error {
	console, cred := h.console(c)
	ctx := c.Request().Context()
	outcome, err := decideWith(ctx, console, cred, c.Param("id"), kind)
	if err != nil {
		if application.IsProvisioningFailure(err) {
			return c.JSON(stdhttp.StatusBadGateway, provisioningFailure{Error: err.Error(), Outcome: withWarnings(outcome)})
		}
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, withWarnings(outcome))
}

func decideWith(ctx context.Context, console *application.Console, cred domain.Credential, id string, kind domain.TransitionKind) (application.ReviewOutcome, error) {
	if kind == domain.TransitionApprove {
		return console.Approve(ctx, cred, id)
	}
	return console.Reject(ctx, cred, id)
}

func withWarnings(outcome application.ReviewOutcome) application.ReviewOutcome {
	if outcome.Warnings == nil {
		outcome.Warnings = []string{}
	}
	return outcome
}

type bulkResponse struct {
	Error  string                 `json:"error,omitempty"`
	Report application.BulkReport `json:"report"`
}

// Bulk answers 200 when every item succeeded, 207 when the batch was mixed
// and 502 when nothing went through.
func (h *ConsoleHandler) Bulk(c echo.Context) error {
	kind, err := domain.ParseTransitionKind(c.Param("kind"))
	if err != nil {
		return handleError(c, err)
	}
	var req idsRequest
	if err := bindValidated(c, idsValidator, &req, true); err != nil {
		return handleError(c, err)
	}
	console, cred := h.console(c)
	report, err := console.RunBulk(c.Request().Context(), cred, req.IDs, kind)
	report.Succeeded = nonNil(report.Succeeded)
	if report.Failed == nil {
		report.Failed = []domain.ItemFailure{}
	}
	var bulk *domain.BulkError
	switch {
	case err == nil:
		return c.JSON(stdhttp.StatusOK, bulkResponse{Report: report})
	case errors.As(err, &bulk) && len(report.Succeeded) > 0:
		return c.JSON(stdhttp.StatusMultiStatus, bulkResponse{Error: err.Error(), Report: report})
	case errors.As(err, &bulk):
		return c.JSON(stdhttp.StatusBadGateway, bulkResponse{Error: err.Error(), Report: report})
	default:
		return handleError(c, err)
	}
}

func (h *ConsoleHandler) UndoEntries(c echo.Context) error {
	console, _ := h.console(c)
	entries := console.UndoEntries()
	if entries == nil {
		entries = []application.UndoEntry{}
	}
	return c.JSON(stdhttp.StatusOK, entries)
}

type undoResponse struct {
	Executed bool `json:"executed"`
}

// Undo addresses an entry by stack index or, when the path segment is not a
// number, by entry id.
func (h *ConsoleHandler) Undo(c echo.Context) error {
	console, cred := h.console(c)
	ctx := c.Request().Context()
	ref := c.Param("ref")

	var (
		executed bool
		err      error
	)
	if index, convErr := strconv.Atoi(ref); convErr == nil {
		executed, err = console.Undo(ctx, cred, index)
	} else {
		executed, err = console.UndoByID(ctx, cred, ref)
	}
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, undoResponse{Executed: executed})
}

func (h *ConsoleHandler) ClearUndo(c echo.Context) error {
	console, _ := h.console(c)
	console.ClearUndo()
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *ConsoleHandler) State(c echo.Context) error {
	console, _ := h.console(c)
	return c.JSON(stdhttp.StatusOK, console.State())
}

func (h *ConsoleHandler) History(c echo.Context) error {
	decisions, err := h.review.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	if decisions == nil {
		decisions = []domain.Decision{}
	}
	return c.JSON(stdhttp.StatusOK, decisions)
}

// EndSession discards the operator's console. Pending undo entries are
// dropped, not invoked.
func (h *ConsoleHandler) EndSession(c echo.Context) error {
	subject := operatorOf(auth.CredentialFrom(c))
	h.consoles.Close(subject)
	h.logger.Info(c.Request().Context(), "console session ended", "operator", subject)
	return c.NoContent(stdhttp.StatusNoContent)
}

// HealthHandler answers liveness unconditionally and readiness by running
// every named check.
type HealthHandler struct {
	checks map[string]func(context.Context) error
	logger ports.Logger
}

func NewHealthHandler(checks map[string]func(context.Context) error, logger ports.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := stdhttp.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn(ctx, "readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			status = stdhttp.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	return c.JSON(status, results)
}

func errInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
