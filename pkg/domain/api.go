package domain

// Resolver daemon API paths.
const (
	PathResolve  = "/api/v1/resolve"
	PathCache    = "/api/v1/cache"
	PathNavigate = "/go"
	PathHealth   = "/healthz"
	PathMetrics  = "/metrics"
)

// MaxAddressLength bounds the address accepted by the daemon API.
const MaxAddressLength = 2048

// ResolveResponse is the body of a successful resolve call.
type ResolveResponse struct {
	Address string `json:"address"`
	URL     string `json:"url"`
}
