// Package backend provides the typed JSON-over-HTTP client used for every
// outbound call to a backend service, plus the per-service registry.
//
// The client converts transport and status failures into the uniform
// ServiceError taxonomy; raw transport errors never escape this package. It
// performs no retries: callers decide whether a failure is retryable.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/storefronthq/gateway/internal/errors"
	"github.com/storefronthq/gateway/internal/httputil"
	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/metrics"
)

// Service identifies one of the four backend services.
type Service string

const (
	Catalog  Service = "catalog"
	Identity Service = "identity"
	Order    Service = "order"
	Payment  Service = "payment"
)

// maxResponseBody bounds upstream response bodies.
const maxResponseBody = 8 << 20

// Client is a JSON-over-HTTP client bound to one backend service.
type Client struct {
	httpClient *http.Client
	service    Service
	baseURL    string
}

// ClientConfig configures a backend client.
type ClientConfig struct {
	Service Service
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a client for one backend service.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		service:    cfg.Service,
		baseURL:    cfg.BaseURL,
	}
}

// Service returns the backend this client is bound to.
func (c *Client) Service() Service { return c.service }

// BaseURL returns the backend's base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// upstreamError is the error body shape backends use: {"error": "..."}.
type upstreamError struct {
	Error string `json:"error"`
}

// Call performs one request against the backend and returns the raw JSON
// response body. body, when non-nil, is marshalled as JSON. Failures are
// returned as *errors.ServiceError: connection-level and timeout failures map
// to UpstreamUnavailable, non-2xx responses to UpstreamRejected with the
// upstream-supplied message when one was present.
func (c *Client) Call(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Unknown("failed to marshal request body", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, errors.Unknown("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID := logging.GetUserID(ctx); userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendCall(string(c.service), "unavailable")
		se := errors.UpstreamUnavailable(string(c.service), err)
		if isTimeout(err) {
			se = se.WithDetails("timeout", true)
		}
		return nil, se
	}
	defer resp.Body.Close()

	raw, err := httputil.ReadAllStrict(resp.Body, maxResponseBody)
	if err != nil {
		metrics.RecordBackendCall(string(c.service), "unavailable")
		return nil, errors.UpstreamUnavailable(string(c.service), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordBackendCall(string(c.service), "rejected")
		var ue upstreamError
		_ = json.Unmarshal(raw, &ue)
		return nil, errors.UpstreamRejected(string(c.service), ue.Error, resp.StatusCode)
	}

	metrics.RecordBackendCall(string(c.service), "ok")
	return raw, nil
}

// CallJSON performs Call and decodes the response body into target. A body
// that fails to decode is reported as UpstreamRejected with a malformed
// detail. A nil target discards the body.
func (c *Client) CallJSON(ctx context.Context, method, path string, body, target any) error {
	raw, err := c.Call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if target == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errors.UpstreamRejected(string(c.service), "malformed response body", http.StatusOK).
			WithDetails("decode_error", err.Error())
	}
	return nil
}

// Get performs a GET request, decoding the response into target.
func (c *Client) Get(ctx context.Context, path string, target any) error {
	return c.CallJSON(ctx, http.MethodGet, path, nil, target)
}

// Post performs a POST request with a JSON body, decoding the response into
// target.
func (c *Client) Post(ctx context.Context, path string, body, target any) error {
	return c.CallJSON(ctx, http.MethodPost, path, body, target)
}

// Put performs a PUT request with a JSON body, decoding the response into
// target.
func (c *Client) Put(ctx context.Context, path string, body, target any) error {
	return c.CallJSON(ctx, http.MethodPut, path, body, target)
}

// Delete performs a DELETE request, decoding the response into target.
func (c *Client) Delete(ctx context.Context, path string, target any) error {
	return c.CallJSON(ctx, http.MethodDelete, path, nil, target)
}

// IsTimeout reports whether err was caused by a backend call exceeding its
// bounded wait.
func IsTimeout(err error) bool {
	se := errors.GetServiceError(err)
	if se == nil {
		return false
	}
	v, ok := se.Details["timeout"].(bool)
	return ok && v
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// =============================================================================
// Registry
// =============================================================================

// Registry holds one client per backend service.
type Registry struct {
	clients map[Service]*Client
}

// NewRegistry builds a registry from the given clients. Duplicate services
// are a wiring error.
func NewRegistry(clients ...*Client) (*Registry, error) {
	r := &Registry{clients: make(map[Service]*Client, len(clients))}
	for _, c := range clients {
		if _, dup := r.clients[c.service]; dup {
			return nil, fmt.Errorf("duplicate client for service %s", c.service)
		}
		r.clients[c.service] = c
	}
	return r, nil
}

// For returns the client for a service.
func (r *Registry) For(s Service) (*Client, error) {
	c, ok := r.clients[s]
	if !ok {
		return nil, fmt.Errorf("no client registered for service %s", s)
	}
	return c, nil
}

// MustFor returns the client for a service, panicking if it was never
// registered. Intended for startup wiring only.
func (r *Registry) MustFor(s Service) *Client {
	c, err := r.For(s)
	if err != nil {
		panic(err)
	}
	return c
}
