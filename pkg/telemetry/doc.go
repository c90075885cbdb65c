// Package telemetry wires Prometheus metrics and OpenTelemetry tracing for the
// .asn resolver.
//
// Prometheus metrics live on a private registry exposed by the resolver daemon
// at /metrics. OpenTelemetry spans and instruments go through the global
// providers; SetupProvider installs an OTLP exporter when one is configured and
// is a no-op otherwise.
package telemetry
