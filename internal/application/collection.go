package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

const DefaultPageSize = 10

type SortField string

const (
	SortNone        SortField = ""
	SortSubmittedAt SortField = "submitted_at"
	SortCategory    SortField = "category"
	SortStatus      SortField = "status"
	SortDisplayName SortField = "display_name"
)

func ParseSortField(raw string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case SortSubmittedAt, SortCategory, SortStatus, SortDisplayName:
		return f, nil
	default:
		return SortNone, fmt.Errorf("%w: unknown sort field %q", domain.ErrInvalidInput, raw)
	}
}

// Filters are applied in the order search, category, status, date range.
// From and To are inclusive bounds on the submission time.
type Filters struct {
	Search   string          `json:"search,omitempty"`
	Category domain.Category `json:"category,omitempty"`
	Status   domain.Status   `json:"status,omitempty"`
	From     *time.Time      `json:"from,omitempty"`
	To       *time.Time      `json:"to,omitempty"`
}

type Query struct {
	Filters  Filters   `json:"filters"`
	Sort     SortField `json:"sort,omitempty"`
	SortDesc bool      `json:"sort_desc"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

type Page struct {
	Items     []domain.Application `json:"items"`
	Total     int                  `json:"total"`
	Page      int                  `json:"page"`
	PageCount int                  `json:"page_count"`
	Query     Query                `json:"query"`
}

// Project runs the projection pipeline over items. It never mutates items.
func Project(items []domain.Application, q Query) Page {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}

	out := make([]domain.Application, 0, len(items))
	needle := strings.ToLower(strings.TrimSpace(q.Filters.Search))
	for _, app := range items {
		if needle != "" && !matchesSearch(app, needle) {
			continue
		}
		if q.Filters.Category != "" && app.Category() != q.Filters.Category {
			continue
		}
		if q.Filters.Status != "" && app.Status != q.Filters.Status {
			continue
		}
		if q.Filters.From != nil && app.SubmittedAt.Before(*q.Filters.From) {
			continue
		}
		if q.Filters.To != nil && app.SubmittedAt.After(*q.Filters.To) {
			continue
		}
		out = append(out, app)
	}

	if less := lessFor(q.Sort); less != nil {
		sort.SliceStable(out, func(i, j int) bool {
			if q.SortDesc {
				return less(out[j], out[i])
			}
			return less(out[i], out[j])
		})
	}

	total := len(out)
	pageCount := (total + q.PageSize - 1) / q.PageSize
	if pageCount == 0 {
		pageCount = 1
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > pageCount {
		q.Page = pageCount
	}
	start := (q.Page - 1) * q.PageSize
	end := min(start+q.PageSize, total)

	return Page{
		Items:     out[start:end],
		Total:     total,
		Page:      q.Page,
		PageCount: pageCount,
		Query:     q,
	}
}

func matchesSearch(app domain.Application, needle string) bool {
	c := app.Contact()
	fields := []string{
		app.DisplayName(),
		string(app.Category()),
		c.FirstName, c.LastName, c.FullName(), c.Email, c.ContactEmail, c.Phone,
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func lessFor(field SortField) func(a, b domain.Application) bool {
	switch field {
	case SortSubmittedAt:
		return func(a, b domain.Application) bool { return a.SubmittedAt.Before(b.SubmittedAt) }
	case SortCategory:
		return func(a, b domain.Application) bool { return a.Category() < b.Category() }
	case SortStatus:
		return func(a, b domain.Application) bool { return a.Status < b.Status }
	case SortDisplayName:
		return func(a, b domain.Application) bool {
			return strings.ToLower(a.DisplayName()) < strings.ToLower(b.DisplayName())
		}
	default:
		return nil
	}
}

// CollectionView keeps the last fetched application list and the operator's
// current query. The list is only ever replaced whole, on Refresh.
type CollectionView struct {
	mu      sync.RWMutex
	apps    ports.ApplicationGateway
	logger  ports.Logger
	items   []domain.Application
	query   Query
	fetched time.Time
}

func NewCollectionView(apps ports.ApplicationGateway, pageSize int, logger ports.Logger) *CollectionView {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CollectionView{
		apps:   apps,
		logger: orLogger(logger),
		query:  Query{Page: 1, PageSize: pageSize},
	}
}

func (v *CollectionView) Refresh(ctx context.Context, cred domain.Credential) error {
	items, err := v.apps.List(ctx, cred, ports.ListFilter{})
	if err != nil {
		return err
	}
	for _, app := range items {
		if ierr := app.CheckInvariant(); ierr != nil {
			v.logger.Warn(ctx, "application violates status invariant", "application_id", app.ID, "error", ierr)
		}
	}

	v.mu.Lock()
	v.items = items
	v.fetched = time.Now().UTC()
	v.mu.Unlock()
	v.logger.Debug(ctx, "collection refreshed", "count", len(items))
	return nil
}

func (v *CollectionView) Items() []domain.Application {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.Application(nil), v.items...)
}

func (v *CollectionView) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetched
}

func (v *CollectionView) Find(id string) (domain.Application, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, app := range v.items {
		if app.ID == id {
			return app, true
		}
	}
	return domain.Application{}, false
}

// SetFilters replaces the active filters and resets pagination.
func (v *CollectionView) SetFilters(f Filters) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Filters = f
	v.query.Page = 1
}

// ToggleSort sorts ascending by a new field and flips direction when the
// same field is chosen again. Filters and page are kept.
func (v *CollectionView) ToggleSort(field SortField) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.query.Sort == field {
		v.query.SortDesc = !v.query.SortDesc
		return
	}
	v.query.Sort = field
	v.query.SortDesc = false
}

// SetPage moves to page, clamped to the pages the current projection has.
func (v *CollectionView) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	q := v.query
	q.Page = page
	v.query.Page = Project(v.items, q).Page
}

// Query returns the active query. The page is clamped against the current
// items, which a refresh may have shrunk since SetPage.
func (v *CollectionView) Query() Query {
	v.mu.RLock()
	items, q := v.items, v.query
	v.mu.RUnlock()
	q.Page = Project(items, q).Page
	return q
}

func (v *CollectionView) Project() Page {
	v.mu.RLock()
	items, q := v.items, v.query
	v.mu.RUnlock()
	return Project(items, q)
}
