// Package api implements the HTTP REST API for pinctl Core.
//
// This package provides:
//   - Device and command CRUD, scoped to the authenticated owner
//   - Command execution through the execution package
//   - The recent execution history
//   - Middleware stack (request ID, logging, recovery, CORS, JWT auth)
//
// # Security
//
// Every route except /health and /metrics requires an HS256 bearer token
// issued by the auth package. A device owned by another user is reported
// as not found.
//
// # Execution responses
//
// A gateway failure is not an HTTP error: the response is 200 with
// success=false and the failure text. A 500 with code persistence_error
// means the gateway call happened but a status or audit write failed; the
// body still carries the execution result.
package api
