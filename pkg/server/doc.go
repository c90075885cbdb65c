// Package server exposes a resolver over HTTP. It is the daemon the desktop
// shell talks to when it runs with the ipc backend, and it serves /go as a
// redirecting entry point for plain browsers.
package server
