// Package web is the thin HTTP layer over the build pipeline: status
// snapshots, the build trigger, the manifest and the archive download.
// It holds no build logic; everything is delegated to the orchestrator
// and read from the shared progress record and disk artifacts.
package web
