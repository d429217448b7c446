package catalog

import (
	"path/filepath"
	"regexp"
	"strings"
)

// releaseMarkers are the tokens a release archive name must contain,
// in Latin and Cyrillic spellings.
//
//nolint:gochecknoglobals // Fixed release naming convention.
var releaseMarkers = []string{"iis", "иис"}

// versionPatterns capture a v-prefixed dotted version following a marker
// word with optional separators, e.g. "IIS-v1.09.3.zip" or "ИИС v1.19.1.zip".
//
//nolint:gochecknoglobals // Compiled once, read-only.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)iis[ _-]*(v\d+\.\d+\.\d+)`),
	regexp.MustCompile(`(?i)иис[ _-]*(v\d+\.\d+\.\d+)`),
}

// archiveExtension is the only packaging the catalog publishes releases in.
const archiveExtension = ".zip"

// isReleaseArchive reports whether a catalog file name looks like a release:
// it carries one of the marker tokens and has the archive extension.
func isReleaseArchive(name string) bool {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, archiveExtension) {
		return false
	}

	for _, marker := range releaseMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}

// ExtractVersion pulls the release version out of a file name.
// When no pattern matches it falls back to the name with its extension
// stripped, so the result is always usable for equality comparison.
func ExtractVersion(name string) string {
	for _, pattern := range versionPatterns {
		if match := pattern.FindStringSubmatch(name); match != nil {
			return match[1]
		}
	}

	return strings.TrimSuffix(name, filepath.Ext(name))
}
