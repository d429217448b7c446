package buildinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// filePermissions is applied to both persisted artifacts.
const filePermissions os.FileMode = 0o644

// ErrNotFound is returned when a manifest has not been written yet.
var ErrNotFound = errors.New("build manifest not found")

// Manifest describes the currently published server pack. It is written
// next to the archive so downstream clients can verify what they download.
type Manifest struct {
	// Version is the release version the pack was built from.
	Version string `yaml:"version"`
	// SourceName is the catalog file name the pack was built from.
	SourceName string `yaml:"source_name"`
	// Checksum is the hex MD5 digest of the published archive.
	Checksum string `yaml:"checksum"`
	// SizeBytes is the size of the published archive.
	SizeBytes int64 `yaml:"size_bytes"`
	// BuiltAt is when the pack was published.
	BuiltAt time.Time `yaml:"built_at"`
}

// Repository persists the version token and the build manifest on disk.
// The version token is a single-line text file, the durable contract
// between pipeline runs and the serving layer.
type Repository struct {
	// versionPath is the location of the plain-text version token.
	versionPath string
	// manifestPath is the location of the YAML manifest.
	manifestPath string
	// mu protects concurrent access to both files.
	mu sync.Mutex
}

// NewRepository creates a repository reading and writing at the provided paths.
func NewRepository(versionPath, manifestPath string) *Repository {
	return &Repository{
		versionPath:  filepath.Clean(versionPath),
		manifestPath: filepath.Clean(manifestPath),
	}
}

// CurrentVersion reads the persisted version token.
// An absent token means nothing was built yet and yields an empty string.
func (r *Repository) CurrentVersion(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.versionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("read version token: %w", err)
	}

	return strings.TrimSpace(string(contents)), nil
}

// SaveVersion writes the version token, a single line with no schema.
func (r *Repository) SaveVersion(_ context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.WriteFile(r.versionPath, []byte(version+"\n"), filePermissions); err != nil {
		return fmt.Errorf("write version token: %w", err)
	}

	return nil
}

// LoadManifest reads the build manifest from disk.
func (r *Repository) LoadManifest(_ context.Context) (*Manifest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &manifest, nil
}

// SaveManifest writes the build manifest to disk.
func (r *Repository) SaveManifest(_ context.Context, manifest *Manifest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	if err = os.WriteFile(r.manifestPath, data, filePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
