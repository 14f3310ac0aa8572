// Package remote talks to the marketplace backend that stores applications
// and accounts. Every failure leaving this package is a *domain.RemoteError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/tidwall/gjson"

	"review-console/internal/domain"
)

const DefaultProductionHostPattern = `(^|\.)marketplace\.com$`

// BaseURLResolver returns the backend base URL. It is consulted on every
// request so a changed target takes effect without a restart.
type BaseURLResolver func() string

type Config struct {
	BaseURL               BaseURLResolver
	ProductionHostPattern string
	Timeout               time.Duration
	HTTPClient            *http.Client
	// Traced wraps the HTTP client so each call opens an X-Ray subsegment.
	Traced bool
}

type Client struct {
	baseURL    BaseURLResolver
	production *regexp.Regexp
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == nil {
		return nil, fmt.Errorf("%w: remote base URL resolver is required", domain.ErrInvalidInput)
	}
	pattern := cfg.ProductionHostPattern
	if pattern == "" {
		pattern = DefaultProductionHostPattern
	}
	production, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: production host pattern: %v", domain.ErrInvalidInput, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.Traced {
		httpClient = xray.Client(httpClient)
	}

	return &Client{baseURL: cfg.BaseURL, production: production, httpClient: httpClient}, nil
}

// Request sends one call to the backend and returns the raw JSON body, which
// is nil for an empty response. When requireAuth is set and cred carries no
// token the call fails with domain.ErrAuthRequired without touching the
// network.
func (c *Client) Request(ctx context.Context, cred domain.Credential, method, endpoint string, body any, requireAuth bool) (json.RawMessage, error) {
	if requireAuth && !cred.Present() {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, domain.ErrAuthRequired)
	}

	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &domain.RemoteError{Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred.Present() {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("Network request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RemoteError{Message: fmt.Sprintf("failed to read response body: %v", err), Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return nil, &domain.RemoteError{
			Message: fmt.Sprintf("Expected a JSON response but received %q", contentType(resp.Header.Get("Content-Type"))),
			Status:  resp.StatusCode,
		}
	}
	if !gjson.ValidBytes(raw) {
		return nil, &domain.RemoteError{Message: "Response body is not valid JSON", Status: resp.StatusCode}
	}
	return raw, nil
}

// resolve joins endpoint onto the current base URL, upgrading http to https
// for production hosts.
func (c *Client) resolve(endpoint string) (string, error) {
	base := strings.TrimSpace(c.baseURL())
	if base == "" {
		return "", &domain.RemoteError{Message: "remote base URL is not configured"}
	}
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(endpoint, "/"))
	if err != nil {
		return "", &domain.RemoteError{Message: fmt.Sprintf("invalid remote URL: %v", err)}
	}
	if u.Scheme == "http" && c.production.MatchString(u.Hostname()) {
		u.Scheme = "https"
	}
	return u.String(), nil
}

func errorFromResponse(status int, header string, raw []byte) *domain.RemoteError {
	text := strings.TrimSpace(string(raw))
	if gjson.ValidBytes(raw) && text != "" {
		parsed := gjson.ParseBytes(raw)
		if msg := messageFrom(parsed); msg != "" {
			return &domain.RemoteError{Message: msg, Status: status}
		}
		return &domain.RemoteError{Message: fmt.Sprintf("Request failed with status %d: %s", status, text), Status: status}
	}
	if contentType(header) == "text/html" || looksLikeHTML(text) {
		return &domain.RemoteError{Message: fmt.Sprintf("Server returned an HTML error page (status %d)", status), Status: status}
	}
	if text == "" {
		return &domain.RemoteError{Message: fmt.Sprintf("Request failed with status %d", status), Status: status}
	}
	return &domain.RemoteError{Message: fmt.Sprintf("Request failed with status %d: %s", status, text), Status: status}
}

// messageFrom picks detail, error or message. A validation style detail
// array has its msg entries joined.
func messageFrom(body gjson.Result) string {
	if !body.IsObject() {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		field := body.Get(key)
		switch {
		case !field.Exists():
			continue
		case field.IsArray():
			var parts []string
			for _, item := range field.Array() {
				if m := item.Get("msg"); m.Exists() {
					parts = append(parts, m.String())
				} else if item.Type == gjson.String {
					parts = append(parts, item.String())
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		case field.IsObject():
			if m := field.Get("message"); m.Exists() && m.String() != "" {
				return m.String()
			}
			return field.Raw
		default:
			if s := strings.TrimSpace(field.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func contentType(header string) string {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mediaType
}

func isJSON(header string) bool {
	ct := contentType(header)
	return ct == "application/json" || strings.HasSuffix(ct, "+json")
}

func looksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html")
}
