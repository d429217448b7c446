// Package catalog lists release archives in a public cloud-disk folder,
// picks the newest one, resolves transient download links and streams
// archives to disk with integrity verification.
package catalog
