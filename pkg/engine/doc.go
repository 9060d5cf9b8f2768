// Package engine provides the progress state machine and the phase
// orchestrator of the badge collector.
//
// # Overview
//
// Every achievement in the catalog has a StatusRecord. Records move between
// five statuses:
//
//	pending | attempting | earned | failed | skipped
//
// Transitions are unconditional. Transition overwrites the status, stamps the
// update time and replaces the details only when new details are given. The
// single guard is ShouldAttempt, which is true for pending and failed records.
//
// # Persistence
//
// A ProgressStore loads and saves the whole Progress map. Load completes the
// map with a pending record for every catalog id and never writes; Save is
// atomic. The Tracker wraps a store and performs one load-modify-save cycle
// per call, which makes each transition durable before it returns.
//
// # Orchestration
//
// Handlers are registered per phase in a Registry. The Orchestrator visits
// phases in ascending order and, within a phase, handlers in registration
// order:
//
//  1. Compute the eligible targets. With none, the handler counts as a
//     vacuous success and is not invoked.
//  2. Ask the Gate, if any. A denial records the targets as skipped.
//  3. Mark every eligible target attempting in one write.
//  4. Invoke the handler with a Recorder. The handler records each target's
//     final status itself. A failure that left every target skipped is
//     reported as a skipped outcome.
//  5. On an error or a panic, mark every eligible target failed with the
//     error text and continue with the next handler.
//
// # Error Classification
//
//   - Corruption: progress cannot be read. The run aborts before any handler.
//   - Handler: a handler failed. Its targets become failed.
//   - Unavailable: a handler cannot run. Its targets become skipped.
//   - Validation: bad catalog, registry or configuration. Fatal at startup.
//
//	if engine.IsCorruption(err) {
//	    // refuse to continue
//	}
package engine
