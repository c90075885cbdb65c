package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/logging"
	"github.com/Asenturisk/asentu-browser/pkg/telemetry"
)

// DefaultTTL is how long a fetched mapping is served without a refresh.
const DefaultTTL = 5 * time.Minute

// Resolver is the capability the navigation layer depends on. Direct and
// ipc.Client implement it.
type Resolver interface {
	// Resolve maps raw address-bar input onto a URL. The only error callers
	// need to handle is domain.ErrDomainNotFound (plus ErrInvalidAddress for
	// blank input).
	Resolve(ctx context.Context, input string) (string, error)
	// ClearCache drops the cached mapping so the next Resolve re-fetches.
	ClearCache(ctx context.Context) error
}

type cacheEntry struct {
	mapping   domain.Mapping
	fetchedAt time.Time
}

// Direct resolves against a Source and owns the mapping cache.
type Direct struct {
	source  Source
	ttl     time.Duration
	clock   clock.Clock
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu       sync.Mutex
	entry    *cacheEntry
	fallback domain.Mapping
}

var _ Resolver = (*Direct)(nil)

// Option configures a Direct resolver.
type Option func(*Direct)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(d *Direct) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithFallback replaces the hardcoded fallback table. An empty table keeps the defaults.
func WithFallback(m domain.Mapping) Option {
	return func(d *Direct) {
		if len(m) > 0 {
			d.fallback = m.Clone()
		}
	}
}

// WithClock sets the clock used for cache expiry.
func WithClock(c clock.Clock) Option {
	return func(d *Direct) {
		d.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Direct) {
		d.logger = logger
	}
}

// WithMetrics sets the Prometheus metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Direct) {
		d.metrics = m
	}
}

// New returns a resolver with an empty cache.
func New(source Source, opts ...Option) *Direct {
	d := &Direct{
		source:   source,
		ttl:      DefaultTTL,
		clock:    clock.New(),
		fallback: DefaultFallback(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.Or(d.logger)
	return d
}

// Resolve implements Resolver.
func (d *Direct) Resolve(ctx context.Context, input string) (string, error) {
	start := d.clock.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "resolver.resolve",
		trace.WithAttributes(attribute.String("asn.address", input)))
	defer span.End()

	input = strings.TrimSpace(input)
	if input == "" {
		d.metrics.RecordResolution("invalid")
		span.SetStatus(codes.Error, "empty address")
		return "", fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	name, path := SplitAddress(input)
	span.SetAttributes(attribute.String("asn.domain", name))

	mapping, source := d.mapping(ctx)
	base, ok := mapping.Lookup(name)

	outcome := "resolved"
	if !ok {
		outcome = "not_found"
	}
	d.metrics.RecordResolution(outcome)
	telemetry.RecordResolveMetrics(ctx, telemetry.ResolveMetrics{
		Outcome:  outcome,
		Source:   string(source),
		Duration: d.clock.Since(start),
	})
	span.SetAttributes(attribute.String("mapping.source", string(source)))

	if !ok {
		d.logger.DebugContext(ctx, "asn domain not found", "domain", name, "source", source)
		span.SetStatus(codes.Error, "domain not found")
		return "", domain.NotFound(name)
	}

	target := JoinTarget(base, path)
	d.logger.DebugContext(ctx, "asn domain resolved", "domain", name, "target", target, "source", source)
	return target, nil
}

// Mapping returns the current mapping table, refreshing it when the cache is
// empty or older than the TTL. It never fails: a stale table or the fallback
// table is returned when the refresh does not succeed.
func (d *Direct) Mapping(ctx context.Context) domain.Mapping {
	m, _ := d.mapping(ctx)
	return m.Clone()
}

func (d *Direct) mapping(ctx context.Context) (domain.Mapping, domain.MappingSource) {
	now := d.clock.Now()

	d.mu.Lock()
	entry := d.entry
	d.mu.Unlock()

	if entry != nil && now.Sub(entry.fetchedAt) < d.ttl {
		d.metrics.RecordCacheLookup(true)
		d.metrics.RecordMappingSource(string(domain.SourceCache))
		return entry.mapping, domain.SourceCache
	}
	d.metrics.RecordCacheLookup(false)

	mapping, err := d.fetch(ctx)
	if err == nil {
		d.mu.Lock()
		d.entry = &cacheEntry{mapping: mapping, fetchedAt: now}
		d.mu.Unlock()
		d.metrics.RecordMappingSource(string(domain.SourceNetwork))
		return mapping, domain.SourceNetwork
	}

	// Re-read: a concurrent fetch may have succeeded meanwhile.
	d.mu.Lock()
	entry = d.entry
	fallback := d.fallback
	d.mu.Unlock()

	if entry != nil {
		d.logger.WarnContext(ctx, "mapping fetch failed, serving stale cache",
			"error", err, "fetched_at", entry.fetchedAt)
		d.metrics.RecordMappingSource(string(domain.SourceStale))
		return entry.mapping, domain.SourceStale
	}

	d.logger.WarnContext(ctx, "mapping fetch failed, serving fallback table",
		"error", err, "entries", len(fallback))
	d.metrics.RecordMappingSource(string(domain.SourceFallback))
	return fallback, domain.SourceFallback
}

func (d *Direct) fetch(ctx context.Context) (domain.Mapping, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "resolver.fetch_mapping")
	defer span.End()

	start := d.clock.Now()
	mapping, err := d.source.FetchMapping(ctx)
	elapsed := d.clock.Since(start)

	if err != nil {
		d.metrics.RecordFetch("error", elapsed)
		telemetry.RecordFetchEvent(span, "network", 0, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	d.metrics.RecordFetch("success", elapsed)
	telemetry.RecordFetchEvent(span, "network", len(mapping), nil)
	d.logger.InfoContext(ctx, "mapping refreshed", "entries", len(mapping), "duration", elapsed)
	return mapping, nil
}

// ClearCache implements Resolver. The next lookup always goes to the network.
func (d *Direct) ClearCache(ctx context.Context) error {
	d.mu.Lock()
	d.entry = nil
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "mapping cache cleared")
	return nil
}

// SetFallback swaps the fallback table without touching the cache. An empty
// table restores the defaults.
func (d *Direct) SetFallback(m domain.Mapping) {
	if len(m) == 0 {
		m = DefaultFallback()
	}
	d.mu.Lock()
	d.fallback = m.Clone()
	d.mu.Unlock()
}

// Status reports the cache state without triggering a fetch.
func (d *Direct) Status(_ context.Context) (domain.CacheStatus, error) {
	d.mu.Lock()
	entry := d.entry
	d.mu.Unlock()

	status := domain.CacheStatus{
		State: domain.CacheEmpty,
		TTL:   d.ttl.String(),
	}
	if entry == nil {
		return status, nil
	}

	age := d.clock.Since(entry.fetchedAt)
	fetchedAt := entry.fetchedAt
	status.FetchedAt = &fetchedAt
	status.Age = age.Truncate(time.Second).String()
	status.Entries = len(entry.mapping)
	status.State = domain.CacheFresh
	if age >= d.ttl {
		status.State = domain.CacheStale
	}
	return status, nil
}
