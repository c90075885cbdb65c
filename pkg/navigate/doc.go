// Package navigate turns address-bar input into a navigation target.
//
// Inputs naming a .asn pseudo-domain go through a resolver.Resolver. Anything
// else is treated as a regular URL (https:// assumed) or, when it cannot be a
// host, as a search query.
package navigate
