package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"review-console/internal/domain"
	"review-console/internal/infrastructure/auth"
)

type Mode string

const (
	ModeNone    Mode = "none"
	ModeStatic  Mode = "static"
	ModeCognito Mode = "cognito"
)

// OperatorHeader names the operator when the token itself carries no
// identity (none and static modes).
const OperatorHeader = "X-Operator"

const anonymousOperator = "anonymous"

func ParseAuthMode(raw string) (Mode, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "":
		return ModeNone, nil
	case ModeNone, ModeStatic, ModeCognito:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid auth mode %q", raw)
	}
}

type AuthOptions struct {
	Mode        string
	StaticToken string
	Cognito     echo.MiddlewareFunc
}

// AuthMiddleware resolves the operator credential for the request. In none
// mode any bearer token is forwarded untouched to the backend; static mode
// requires the shared token; cognito mode verifies the JWT.
func AuthMiddleware(opts AuthOptions) (echo.MiddlewareFunc, error) {
	mode, err := ParseAuthMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeCognito && opts.Cognito == nil {
		return nil, errors.New("cognito middleware is required when auth mode is cognito")
	}
	if mode == ModeStatic && opts.StaticToken == "" {
		return nil, errors.New("static token is required when auth mode is static")
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch mode {
			case ModeNone:
				auth.SetCredential(c, domain.Credential{
					Token:   auth.BearerToken(c.Request().Header.Get("Authorization")),
					Subject: operatorName(c),
				})
				return next(c)
			case ModeStatic:
				token := auth.BearerToken(c.Request().Header.Get("Authorization"))
				if subtle.ConstantTimeCompare([]byte(token), []byte(opts.StaticToken)) != 1 {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				}
				auth.SetCredential(c, domain.Credential{Token: token, Subject: operatorName(c)})
				return next(c)
			case ModeCognito:
				return opts.Cognito(next)(c)
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "invalid auth mode")
			}
		}
	}, nil
}

func operatorName(c echo.Context) string {
	if name := strings.TrimSpace(c.Request().Header.Get(OperatorHeader)); name != "" {
		return name
	}
	return anonymousOperator
}
