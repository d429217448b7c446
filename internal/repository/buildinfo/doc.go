// Package buildinfo persists what the pipeline has published: the plain-text
// version token read on every status query and a YAML manifest describing
// the archive (checksum, size, source file, build time).
package buildinfo
