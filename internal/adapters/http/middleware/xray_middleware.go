package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"

	"review-console/internal/infrastructure/auth"
)

// XRayMiddleware opens a segment per request and records the route, status
// and operator on it.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			req := c.Request().Clone(ctx)
			c.SetRequest(req)

			err := next(c)

			_ = seg.AddAnnotation("route", c.Path())
			_ = seg.AddAnnotation("status", c.Response().Status)
			if operator, ok := c.Get(auth.ContextOperator).(string); ok && operator != "" {
				_ = seg.AddAnnotation("operator", operator)
			}
			seg.Close(err)
			return err
		}
	}
}
