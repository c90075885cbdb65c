// Package resolver maps .asn pseudo-domains onto real URLs.
//
// The mapping table is fetched from a remote JSON document and cached in
// memory for a fixed TTL. When a refresh fails the last good table is served
// even if stale; when no table was ever fetched a small hardcoded fallback
// table answers instead. Resolve never reports network failures, only
// "domain not found".
//
// Two backends satisfy the Resolver interface: Direct, which owns the cache and
// fetches the table itself, and the IPC client in package ipc, which delegates
// to a resolver daemon.
package resolver
