// Package bootstrap validates serving limits, negotiates capacity with the
// backend and sequences startup up to the point the server takes over.
//
// Files:
//   - errors.go: error taxonomy (Error, Kind and the IsXxx helpers)
//   - validate.go: Limits and the argument validator
//   - negotiate.go: capacity negotiation against a connected backend
//   - orchestrator.go: startup sequencing, events and tracing spans
//   - metrics.go: effective limit gauges
//
// Every failure that leaves this package is an *Error so the caller can report
// it and exit without inspecting the cause.
package bootstrap
