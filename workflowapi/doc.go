// Package workflowapi is the HTTP client for the external service that
// stores workflow documents and executes them.
//
// Every call goes through one circuit breaker and is traced with an
// OpenTelemetry client span. Failures are returned as *types.Error with an
// UPSTREAM_ERROR, UPSTREAM_TIMEOUT or SERVICE_UNAVAILABLE code; the client
// never touches editor state.
package workflowapi
