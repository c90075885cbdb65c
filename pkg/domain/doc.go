// Package domain defines the core types shared by the .asn resolver, its
// backends and its transports.
//
// This package has no dependencies outside the Go standard library. Other
// packages (resolver, ipc, server, navigate) depend on it, never the reverse.
package domain
