package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/telemetry"
)

// fakeSource serves a configurable mapping or error and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	mapping domain.Mapping
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) FetchMapping(_ context.Context) (domain.Mapping, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.mapping, nil
}

func (f *fakeSource) set(m domain.Mapping, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapping = m
	f.err = err
}

var errUnreachable = errors.New("network unreachable")

func newTestResolver(src Source) (*Direct, *clock.Mock) {
	mock := clock.NewMock()
	return New(src, WithClock(mock), WithMetrics(telemetry.NewMetrics())), mock
}

func TestResolve_PathJoining(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		input string
		want  string
	}{
		{name: "base with slash", base: "https://x.com/", input: "hello.asn/about", want: "https://x.com/about"},
		{name: "base without slash", base: "https://x.com", input: "hello.asn/about", want: "https://x.com/about"},
		{name: "bare domain", base: "https://x.com/", input: "hello.asn", want: "https://x.com/"},
		{name: "suffix appended", base: "https://x.com/", input: "hello", want: "https://x.com/"},
		{name: "suffix appended with path", base: "https://x.com", input: "hello/docs/intro", want: "https://x.com/docs/intro"},
		{name: "surrounding whitespace", base: "https://x.com/", input: "  hello.asn/about  ", want: "https://x.com/about"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{mapping: domain.Mapping{"hello.asn": tt.base}}
			r, _ := newTestResolver(src)

			got, err := r.Resolve(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnknownDomain(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh cache", func(t *testing.T) {
		r, _ := newTestResolver(&fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}})
		_, err := r.Resolve(ctx, "unknown.asn")
		require.ErrorIs(t, err, domain.ErrDomainNotFound)
		assert.Equal(t, domain.CodeDomainNotFound, domain.CodeOf(err))
	})

	t.Run("stale cache", func(t *testing.T) {
		src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
		r, mock := newTestResolver(src)
		_, err := r.Resolve(ctx, "hello.asn")
		require.NoError(t, err)

		src.set(nil, errUnreachable)
		mock.Add(10 * time.Minute)
		_, err = r.Resolve(ctx, "unknown.asn")
		require.ErrorIs(t, err, domain.ErrDomainNotFound)
	})

	t.Run("fallback", func(t *testing.T) {
		r, _ := newTestResolver(&fakeSource{err: errUnreachable})
		_, err := r.Resolve(ctx, "unknown.asn")
		require.ErrorIs(t, err, domain.ErrDomainNotFound)
	})

	t.Run("empty value counts as missing", func(t *testing.T) {
		r, _ := newTestResolver(&fakeSource{mapping: domain.Mapping{"blank.asn": ""}})
		_, err := r.Resolve(ctx, "blank.asn")
		require.ErrorIs(t, err, domain.ErrDomainNotFound)
	})
}

func TestResolve_KeysAreCaseSensitive(t *testing.T) {
	r, _ := newTestResolver(&fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}})

	_, err := r.Resolve(context.Background(), "HELLO.asn")
	require.ErrorIs(t, err, domain.ErrDomainNotFound)
}

func TestResolve_EmptyInput(t *testing.T) {
	src := &fakeSource{mapping: domain.Mapping{}}
	r, _ := newTestResolver(src)

	_, err := r.Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
	assert.Equal(t, int32(0), src.calls.Load(), "blank input must not trigger a fetch")
}

func TestMapping_CacheHitWithinTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
	r, mock := newTestResolver(src)

	_, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)

	mock.Add(4*time.Minute + 59*time.Second)
	_, err = r.Resolve(ctx, "hello.asn/about")
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestMapping_RefetchAfterTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://old.example/"}}
	r, mock := newTestResolver(src)

	got, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, "https://old.example/", got)

	src.set(domain.Mapping{"hello.asn": "https://new.example/"}, nil)
	mock.Add(DefaultTTL)

	got, err = r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, "https://new.example/", got)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestMapping_StaleServedOnFailure(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://prior.example/"}}
	r, mock := newTestResolver(src)

	_, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)

	src.set(nil, errUnreachable)
	mock.Add(6 * time.Minute)

	got, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, "https://prior.example/", got, "stale mapping must win over fallback")

	// The fallback table covers trend.asn but the stale table does not.
	_, err = r.Resolve(ctx, "trend.asn")
	require.ErrorIs(t, err, domain.ErrDomainNotFound)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheStale, status.State)
}

func TestMapping_FallbackWithoutPriorFetch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{err: errUnreachable}
	r, _ := newTestResolver(src)

	fallback := DefaultFallback()
	for name, want := range fallback {
		got, err := r.Resolve(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got)
	}

	got, err := r.Resolve(ctx, "mukto/page")
	require.NoError(t, err)
	assert.Equal(t, "https://muxday.com/mukto/page", got)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheEmpty, status.State, "fallback must not populate the cache")

	// Every lookup re-attempts the fetch while the cache is empty.
	assert.Equal(t, int32(len(fallback)+1), src.calls.Load())
}

func TestMapping_FailureKeepsFetchTimestamp(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
	r, mock := newTestResolver(src)

	_ = r.Mapping(ctx)
	fetchedAt := mock.Now()

	src.set(nil, errUnreachable)
	mock.Add(10 * time.Minute)
	_ = r.Mapping(ctx)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status.FetchedAt)
	assert.True(t, status.FetchedAt.Equal(fetchedAt))
}

func TestClearCache_ForcesRefetch(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
	r, _ := newTestResolver(src)

	_, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	require.NoError(t, r.ClearCache(ctx))

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheEmpty, status.State)

	_, err = r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestClearCache_FailureThenFallback(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"custom.asn": "https://custom.example/"}}
	r, _ := newTestResolver(src)

	_, err := r.Resolve(ctx, "custom.asn")
	require.NoError(t, err)

	require.NoError(t, r.ClearCache(ctx))
	src.set(nil, errUnreachable)

	_, err = r.Resolve(ctx, "custom.asn")
	require.ErrorIs(t, err, domain.ErrDomainNotFound, "cleared cache must not be served as stale")

	got, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, "https://asenturisk.github.io/asn/", got)
}

func TestStatus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"a.asn": "https://a.example/", "b.asn": "https://b.example/"}}
	r, mock := newTestResolver(src)

	status, err := r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheEmpty, status.State)
	assert.Nil(t, status.FetchedAt)
	assert.Equal(t, "5m0s", status.TTL)

	_ = r.Mapping(ctx)
	mock.Add(time.Minute)

	status, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheFresh, status.State)
	assert.Equal(t, 2, status.Entries)
	assert.Equal(t, "1m0s", status.Age)

	mock.Add(4 * time.Minute)
	status, err = r.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheStale, status.State)
	assert.Equal(t, int32(1), src.calls.Load(), "Status must not fetch")
}

func TestWithTTL(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
	mock := clock.NewMock()
	r := New(src, WithClock(mock), WithTTL(time.Minute))

	_ = r.Mapping(ctx)
	mock.Add(time.Minute)
	_ = r.Mapping(ctx)
	assert.Equal(t, int32(2), src.calls.Load())

	r = New(src, WithTTL(0))
	assert.Equal(t, DefaultTTL, r.ttl)
}

func TestSetFallback(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(&fakeSource{err: errUnreachable})

	r.SetFallback(domain.Mapping{"docs.asn": "https://docs.example"})
	got, err := r.Resolve(ctx, "docs.asn/start")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example/start", got)

	_, err = r.Resolve(ctx, "hello.asn")
	require.ErrorIs(t, err, domain.ErrDomainNotFound)

	r.SetFallback(nil)
	_, err = r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
}

func TestWithFallback_EmptyKeepsDefaults(t *testing.T) {
	r := New(&fakeSource{err: errUnreachable}, WithFallback(domain.Mapping{}))
	assert.Equal(t, DefaultFallback(), r.fallback)
}

func TestMapping_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(&fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}})

	m := r.Mapping(ctx)
	m["hello.asn"] = "https://evil.example/"

	got, err := r.Resolve(ctx, "hello.asn")
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/", got)
}

func TestResolve_ConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{mapping: domain.Mapping{"hello.asn": "https://x.com/"}}
	r := New(src)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := r.Resolve(ctx, "hello.asn/about")
				if err != nil || got != "https://x.com/about" {
					t.Errorf("Resolve() = %q, %v", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Duplicate fetches during the initial miss are allowed, but the cache
	// must absorb the steady state.
	assert.LessOrEqual(t, src.calls.Load(), int32(16))
}
