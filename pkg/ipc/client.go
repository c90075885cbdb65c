// Package ipc implements resolver.Resolver by delegating to a resolver daemon
// over HTTP, on TCP or a unix socket. It is the backend the desktop shell uses
// so that every window shares the daemon's mapping cache.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
)

const unixScheme = "unix://"

// unixBaseURL is the placeholder origin used for requests sent over a unix socket.
const unixBaseURL = "http://asentu"

// ErrUnavailable reports that the daemon could not be reached or answered
// with something other than the API's documented responses.
var ErrUnavailable = errors.New("resolver daemon unavailable")

// Client talks to the resolver daemon API.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ resolver.Resolver = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each request. Zero means no bound beyond the context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient returns a client for endpoint, which is either an http(s) base
// URL, a bare host:port, or unix:///path/to.sock.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("ipc endpoint is required")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	baseURL := endpoint

	if path, ok := strings.CutPrefix(endpoint, unixScheme); ok {
		if path == "" {
			return nil, fmt.Errorf("ipc endpoint %q: empty socket path", endpoint)
		}
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		}
		baseURL = unixBaseURL
	} else {
		if !strings.Contains(baseURL, "://") {
			baseURL = "http://" + baseURL
		}
		u, err := url.Parse(baseURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("ipc endpoint %q: must be host:port, http(s) url or unix socket", endpoint)
		}
		baseURL = strings.TrimSuffix(u.String(), "/")
	}

	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(transport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve implements resolver.Resolver.
func (c *Client) Resolve(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	query := url.Values{"address": {input}}
	resp, err := c.do(ctx, http.MethodGet, domain.PathResolve+"?"+query.Encode())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var body domain.ResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode resolve response: %v", ErrUnavailable, err)
	}
	return body.URL, nil
}

// ClearCache implements resolver.Resolver. It clears the daemon's cache,
// which every client of that daemon shares.
func (c *Client) ClearCache(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, domain.PathCache)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Status returns the daemon's cache status.
func (c *Client) Status(ctx context.Context) (domain.CacheStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, domain.PathCache)
	if err != nil {
		return domain.CacheStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.CacheStatus{}, decodeError(resp)
	}

	var status domain.CacheStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return domain.CacheStatus{}, fmt.Errorf("%w: decode cache status: %v", ErrUnavailable, err)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

// decodeError maps a daemon error response onto the domain sentinels.
func decodeError(resp *http.Response) error {
	var body domain.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	message := body.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && body.Code == domain.CodeDomainNotFound:
		return &domain.DomainError{Err: domain.ErrDomainNotFound, Code: body.Code, Message: message}
	case resp.StatusCode == http.StatusBadRequest:
		return &domain.DomainError{Err: domain.ErrInvalidAddress, Code: domain.CodeInvalidAddress, Message: message}
	default:
		return fmt.Errorf("%w: unexpected status %s: %s", ErrUnavailable, resp.Status, message)
	}
}
