// Package client talks to the docsync backend.
//
// # Overview
//
// The package provides:
//  1. The Client contract used by the sync coordinator, the merge resolver
//     and the recovery scanner.
//  2. HTTPClient, a JSON-over-HTTP implementation that injects the bearer
//     token carried by the context and maps HTTP statuses to the sentinel
//     errors of internal/common.
//  3. HealthChecker, a gRPC health probe used by the online-status watcher.
//
// # Error Handling
//
// Callers match errors with errors.Is:
//
//   - common.ErrUnauthorized for 401 and 403
//   - common.ErrNotFound for 404
//   - common.ErrConflict for 409
//   - common.ErrValidation for 400 and 422
//   - common.ErrUnavailable for 5xx, timeouts and transport failures
//
// A cancelled context is returned as is, so callers can tell a shutdown from
// an outage.
package client
