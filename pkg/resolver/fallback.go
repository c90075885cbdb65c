package resolver

import "github.com/Asenturisk/asentu-browser/pkg/domain"

// DefaultMappingsURL is the remote document holding the canonical mapping table.
const DefaultMappingsURL = "https://asenturisk.github.io/asn/domains.json"

// DefaultFallback returns the hardcoded table used when no mapping was ever
// fetched and the remote document is unreachable.
func DefaultFallback() domain.Mapping {
	return domain.Mapping{
		"trend.asn":      "https://trend.muxday.com/",
		"asenturisk.asn": "https://asenturisk.web.app/",
		"hello.asn":      "https://asenturisk.github.io/asn/",
		"mukto.asn":      "https://muxday.com/mukto/",
	}
}
