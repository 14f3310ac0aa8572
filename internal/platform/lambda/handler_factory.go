package lambda

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"

	"review-console/internal/ports"
)

// Handler serves API Gateway HTTP API (payload v2) events through the echo
// router.
type Handler func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

func NewHandler(e *echo.Echo, logger ports.Logger) Handler {
	adapter := echoadapter.NewV2(e)
	return func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		resp, err := adapter.ProxyWithContext(ctx, req)
		if err != nil {
			logger.Error(ctx, "lambda proxy failed", "route_key", req.RouteKey, "error", err)
		}
		return resp, err
	}
}

// Start hands control to the Lambda runtime and does not return.
func Start(e *echo.Echo, logger ports.Logger) {
	awslambda.Start(NewHandler(e, logger))
}
