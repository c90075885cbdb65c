package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
	"github.com/Asenturisk/asentu-browser/pkg/logging"
	"github.com/Asenturisk/asentu-browser/pkg/resolver"
)

// HomeAddress is loaded on start and by the home button.
const HomeAddress = "asenturisk.asn"

// SearchURL is the query endpoint for input that is neither a pseudo-domain nor a host.
const SearchURL = "https://www.google.com/search?q="

// Target is where the browser should go for a given input.
type Target struct {
	// URL is the address to load. Empty when NotFound is set.
	URL string `json:"url,omitempty"`
	// Display is what the address bar shows.
	Display string `json:"display"`
	// Secure is true for https targets. Pseudo-domains that fail to resolve
	// are never secure.
	Secure   bool `json:"secure"`
	Pseudo   bool `json:"pseudo"`
	Search   bool `json:"search,omitempty"`
	NotFound bool `json:"not_found,omitempty"`
}

// IsPseudoAddress reports whether the input names a .asn pseudo-domain.
func IsPseudoAddress(address string) bool {
	return domain.HasSuffix(address) || strings.Contains(address, domain.Suffix+"/")
}

// Navigator classifies address-bar input.
type Navigator struct {
	resolver resolver.Resolver
	logger   *slog.Logger
}

// New returns a navigator resolving pseudo-domains through r.
func New(r resolver.Resolver, logger *slog.Logger) *Navigator {
	return &Navigator{resolver: r, logger: logging.Or(logger)}
}

// Navigate computes the target for address. A pseudo-domain that cannot be
// resolved yields a Target with NotFound set and no error; the caller shows
// NotFoundPage. Errors are returned only for blank input or a failing backend.
func (n *Navigator) Navigate(ctx context.Context, address string) (Target, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Target{}, fmt.Errorf("%w: empty address", domain.ErrInvalidAddress)
	}

	if IsPseudoAddress(address) {
		target, err := n.resolver.Resolve(ctx, address)
		switch {
		case errors.Is(err, domain.ErrDomainNotFound):
			n.logger.InfoContext(ctx, "asn domain could not be resolved", "address", address)
			return Target{Display: address, Pseudo: true, NotFound: true}, nil
		case err != nil:
			return Target{}, fmt.Errorf("resolve %q: %w", address, err)
		}
		return Target{
			URL:     target,
			Display: address,
			Secure:  isSecure(target),
			Pseudo:  true,
		}, nil
	}

	if target, ok := regularURL(address); ok {
		return Target{URL: target, Display: address, Secure: isSecure(target)}, nil
	}

	return Target{
		URL:     SearchURL + url.QueryEscape(address),
		Display: "Search: " + address,
		Secure:  true,
		Search:  true,
	}, nil
}

// regularURL prefixes https:// unless the input already carries an http(s)
// scheme and converts a non-ASCII host to punycode.
func regularURL(address string) (string, bool) {
	if strings.IndexFunc(address, unicode.IsSpace) >= 0 {
		return "", false
	}

	raw := address
	explicit := hasHTTPScheme(raw)
	if !explicit {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	// A bare word is a search, not a single-label host.
	if !explicit && !strings.Contains(u.Hostname(), ".") && u.Hostname() != "localhost" {
		return "", false
	}

	if !isASCII(u.Host) {
		host, err := idna.Lookup.ToASCII(u.Hostname())
		if err != nil {
			return "", false
		}
		if port := u.Port(); port != "" {
			host += ":" + port
		}
		u.Host = host
		return u.String(), true
	}
	return raw, true
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func isSecure(target string) bool {
	return strings.HasPrefix(target, "https://")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
