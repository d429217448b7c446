// Package build holds the progress data model of the build pipeline:
// typed transform phases, stage statuses and the reusable process-wide
// progress record.
package build
