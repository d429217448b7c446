// Package orchestrator sequences the update-check, download, verify and
// transform steps of the build pipeline, owns the process-wide progress
// record and guarantees at most one build runs at a time. Failures are
// recorded into the failed stage rather than propagated; observers poll
// read-only snapshots.
package orchestrator
