package domain

import (
	"strings"
	"time"
)

// Suffix is the pseudo top-level domain handled by the resolver.
const Suffix = ".asn"

// Mapping is the table from pseudo-domain (e.g. "hello.asn") to a real base URL.
// Keys are matched exactly and case-sensitively.
type Mapping map[string]string

// Lookup returns the base URL for name. Empty values count as missing.
func (m Mapping) Lookup(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	target, ok := m[name]
	if !ok || target == "" {
		return "", false
	}
	return target, true
}

// Clone returns a shallow copy so callers can't mutate cached state.
func (m Mapping) Clone() Mapping {
	if m == nil {
		return nil
	}
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HasSuffix reports whether name already carries the pseudo-domain suffix.
func HasSuffix(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// CacheState describes the lifecycle of the mapping cache.
type CacheState string

// Cache states.
const (
	CacheEmpty CacheState = "EMPTY"
	CacheFresh CacheState = "FRESH"
	CacheStale CacheState = "STALE"
)

// MappingSource tells where the mapping served to a lookup came from.
type MappingSource string

// Mapping sources.
const (
	SourceCache    MappingSource = "cache"
	SourceNetwork  MappingSource = "network"
	SourceStale    MappingSource = "stale"
	SourceFallback MappingSource = "fallback"
)

// CacheStatus is a point-in-time view of the resolver cache.
type CacheStatus struct {
	State     CacheState `json:"state"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Age       string     `json:"age,omitempty"`
	Entries   int        `json:"entries"`
	TTL       string     `json:"ttl"`
}
