package resolver

import (
	"strings"

	"github.com/Asenturisk/asentu-browser/pkg/domain"
)

// SplitAddress splits raw address-bar input into its pseudo-domain and path.
// The domain is everything before the first "/", with the .asn suffix appended
// when missing. path keeps its leading "/" and is empty when input has none.
func SplitAddress(input string) (name, path string) {
	name = input
	if i := strings.IndexByte(input, '/'); i >= 0 {
		name = input[:i]
		path = input[i:]
	}
	return NormalizeDomain(name), path
}

// NormalizeDomain appends the .asn suffix unless name already ends with it.
func NormalizeDomain(name string) string {
	if domain.HasSuffix(name) {
		return name
	}
	return name + domain.Suffix
}

// JoinTarget appends path to base without producing a double slash when base
// already ends with "/".
func JoinTarget(base, path string) string {
	if path == "" {
		return base
	}
	if strings.HasSuffix(base, "/") {
		return base + strings.TrimPrefix(path, "/")
	}
	return base + path
}
