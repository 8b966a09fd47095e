// Package observability provides structured logging and decision
// instrumentation for the policy decision point.
//
// Logging is zap-based. Metrics and spans go through the OpenTelemetry API;
// they are no-ops until the embedding process installs an SDK provider.
package observability
