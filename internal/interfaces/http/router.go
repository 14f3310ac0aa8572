package http

import (
	stdhttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Middleware is applied in the order XRay, Metrics, RequestLogger globally
// and Auth on the console group only. Nil entries are skipped.
type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
	Metrics       echo.MiddlewareFunc
}

func newEcho(m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	for _, mw := range []echo.MiddlewareFunc{m.XRay, m.Metrics, m.RequestLogger} {
		if mw != nil {
			e.Use(mw)
		}
	}
	return e
}

// NewRouter mounts the operator console under /console and the
// unauthenticated probes at the root. metrics may be nil.
func NewRouter(console *ConsoleHandler, health *HealthHandler, metrics stdhttp.Handler, m Middleware) *echo.Echo {
	e := newEcho(m)
	e.GET("/healthz", health.Live)
	e.GET("/readyz", health.Ready)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	var groupMiddleware []echo.MiddlewareFunc
	if m.Auth != nil {
		groupMiddleware = append(groupMiddleware, m.Auth)
	}
	g := e.Group("/console", groupMiddleware...)
	g.POST("/refresh", console.Refresh)
	g.GET("/applications", console.Applications)
	g.PATCH("/filters", console.UpdateFilters)
	g.POST("/sort/:field", console.ToggleSort)
	g.PUT("/page/:page", console.SetPage)
	g.GET("/selection", console.Selection)
	g.PUT("/selection", console.ReplaceSelection)
	g.DELETE("/selection", console.ClearSelection)
	g.POST("/applications/:id/approve", console.Approve)
	g.POST("/applications/:id/reject", console.Reject)
	g.GET("/applications/:id/history", console.History)
	g.POST("/bulk/:kind", console.Bulk)
	g.GET("/undo", console.UndoEntries)
	g.POST("/undo/:ref", console.Undo)
	g.DELETE("/undo", console.ClearUndo)
	g.GET("/state", console.State)
	g.DELETE("/session", console.EndSession)
	return e
}
