package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"review-console/internal/domain"
	"review-console/internal/ports"
)

// StaticBaseURL always resolves to the same value.
func StaticBaseURL(base string) BaseURLResolver {
	return func() string { return base }
}

// EnvBaseURL prefers the environment variable and falls back to the
// configured value.
func EnvBaseURL(envKey, fallback string) BaseURLResolver {
	return func() string {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v
		}
		return fallback
	}
}

type ApplicationGateway struct {
	client *Client
}

func NewApplicationGateway(client *Client) *ApplicationGateway {
	return &ApplicationGateway{client: client}
}

func (g *ApplicationGateway) List(ctx context.Context, cred domain.Credential, filter ports.ListFilter) ([]domain.Application, error) {
	endpoint := "/applications"
	params := url.Values{}
	if filter.Category != "" {
		params.Set("category", string(filter.Category))
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	raw, err := g.client.Request(ctx, cred, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return nil, err
	}
	return decodeApplications(raw)
}

func (g *ApplicationGateway) Transition(ctx context.Context, cred domain.Credential, appID string, kind domain.TransitionKind) error {
	if strings.TrimSpace(appID) == "" {
		return domain.ErrInvalidInput
	}
	endpoint := fmt.Sprintf("/applications/%s/%s", url.PathEscape(appID), kind)
	_, err := g.client.Request(ctx, cred, http.MethodPost, endpoint, nil, true)
	return err
}

// Ping issues the unauthenticated list the backend exposes as a health check.
func (g *ApplicationGateway) Ping(ctx context.Context) error {
	_, err := g.client.Request(ctx, domain.Credential{}, http.MethodGet, "/applications", nil, false)
	return err
}

type AccountGateway struct {
	client *Client
}

func NewAccountGateway(client *Client) *AccountGateway {
	return &AccountGateway{client: client}
}

func (g *AccountGateway) CreateAccount(ctx context.Context, cred domain.Credential, account domain.Account) error {
	_, err := g.client.Request(ctx, cred, http.MethodPost, "/accounts", account, true)
	return err
}

// decodeApplications accepts a bare array or an object wrapping it in
// "applications", "data" or "items".
func decodeApplications(raw json.RawMessage) ([]domain.Application, error) {
	if len(raw) == 0 {
		return []domain.Application{}, nil
	}
	var apps []domain.Application
	arrErr := json.Unmarshal(raw, &apps)
	if arrErr == nil {
		return apps, nil
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("unexpected applications payload: %v", arrErr)}
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("unexpected applications payload: %v", err)}
	}
	for _, key := range []string{"applications", "data", "items"} {
		inner, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &apps); err != nil {
			return nil, &domain.RemoteError{Message: fmt.Sprintf("unexpected applications payload: %v", err)}
		}
		return apps, nil
	}
	return nil, &domain.RemoteError{Message: "unexpected applications payload: no application list found"}
}

var (
	_ ports.ApplicationGateway = (*ApplicationGateway)(nil)
	_ ports.AccountGateway     = (*AccountGateway)(nil)
)
