// Package core runs reconciliations end to end, independent of any transport.
//
// Web handlers and the CLI hand a [Service] the uploaded files as a [RunInput].
// The service checks that every required file is present, reads the workbooks,
// fills the primary table through the reconcile engine, serializes the result in
// the primary's format, and records an audit entry for the run.
//
// # Failure model
//
// Missing inputs, an unreadable primary table, and a primary table without its
// identity column are fatal and abort the run before anything is written. A
// reference file that cannot be read, or lacks its identifier column, only
// produces a warning; the remaining files and targets are still processed.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]. Each
// category has its own code range for support reference:
//
//   - IN001-IN002: Input errors (missing files, identity column)
//   - REF001: Reference file problems
//   - FILE001-FILE006: File errors (size, format, header row, corrupt workbook)
//   - RUN001-RUN003: Run control (busy, cancelled, timed out)
//   - DB001-DB002: Run history store
//   - RATE001: Request throttling
//
// # Concurrency
//
// A single run is synchronous and shares no state with other runs. The service
// bounds the number of runs in flight with a [RunLimiter].
package core
