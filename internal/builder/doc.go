// Package builder transforms a downloaded release archive into a
// ready-to-run server pack: it overlays the archive on a static template,
// strips client-only entries, injects launcher scripts and repacks the
// result deterministically.
package builder
