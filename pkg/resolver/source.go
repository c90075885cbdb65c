package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
)

// Source fetches the current mapping table.
type Source interface {
	FetchMapping(ctx context.Context) (domain.Mapping, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (domain.Mapping, error)

// FetchMapping calls f.
func (f SourceFunc) FetchMapping(ctx context.Context) (domain.Mapping, error) {
	return f(ctx)
}

// HTTPSource fetches the mapping table with a single unauthenticated GET.
type HTTPSource struct {
	url  string
	http *http.Client
}

// NewHTTPSource validates rawURL and returns a source for it. A zero timeout
// leaves the request bounded only by the caller's context.
func NewHTTPSource(rawURL string, timeout time.Duration) (*HTTPSource, error) {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mappings url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid mappings url %q: scheme must be http or https", rawURL)
	}

	return &HTTPSource{
		url: u.String(),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// URL returns the document address.
func (s *HTTPSource) URL() string {
	return s.url
}

// FetchMapping implements Source. Any non-200 status or a body that is not a
// JSON object of strings is an error.
func (s *HTTPSource) FetchMapping(ctx context.Context) (domain.Mapping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status: %s", domain.ErrFetchFailed, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrFetchFailed, err)
	}

	// Unmarshal rejects trailing data after the object, a streaming Decode does not.
	var mapping domain.Mapping
	if err := json.Unmarshal(body, &mapping); err != nil {
		return nil, fmt.Errorf("%w: decode mapping: %v", domain.ErrFetchFailed, err)
	}
	if mapping == nil {
		// "null" decodes without error but is not a mapping.
		return nil, fmt.Errorf("%w: expected JSON object", domain.ErrFetchFailed)
	}

	return mapping, nil
}
