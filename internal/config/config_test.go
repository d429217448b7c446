package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing folder URL.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad folder URL.
	cfg = &Config{
		FolderURL: "not a url",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Bad listen address.
	cfg = &Config{
		FolderURL:     "https://disk.example.com/d/abc",
		ListenAddress: "bad:address",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay, defaults filled in.
	cfg = &Config{
		FolderURL: "https://disk.example.com/d/abc",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, "template", cfg.TemplateDir)
}

// TestLoad_FromFile ensures YAML settings are read and validated.
func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := "folder_url: https://disk.example.com/d/abc\n" +
		"listen_addr: 127.0.0.1:9090\n" +
		"data_dir: " + filepath.Join(dir, "data") + "\n" +
		"timeout: 10s\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://disk.example.com/d/abc", cfg.FolderURL)
	require.Equal(t, "127.0.0.1:9090", cfg.ListenAddress)
	require.Equal(t, 10*time.Second, cfg.Timeout)
}

// TestLoad_MissingFile ensures a missing settings file falls back to env and defaults.
func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("IIS_BUILDER_FOLDER_URL", "https://disk.example.com/d/abc")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, "https://disk.example.com/d/abc", cfg.FolderURL)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
}

// TestLoad_UnreadableFile surfaces read failures instead of silently
// skipping the settings file.
func TestLoad_UnreadableFile(t *testing.T) {
	t.Parallel()

	// A directory cannot be read as a settings file.
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.Mkdir(path, 0o755))

	_, err := Load(path)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

// TestArtifactPaths ensures derived paths stay inside the data directory.
func TestArtifactPaths(t *testing.T) {
	t.Parallel()

	cfg := &Config{DataDir: "/var/lib/iis"}
	require.Equal(t, filepath.Join("/var/lib/iis", "iis-server.zip"), cfg.ArchivePath())
	require.Equal(t, filepath.Join("/var/lib/iis", "iis-version.txt"), cfg.VersionFilePath())
	require.Equal(t, filepath.Join("/var/lib/iis", "iis-build-manifest.yaml"), cfg.ManifestPath())
	require.Equal(t, filepath.Join("/var/lib/iis", "workspace"), cfg.WorkspaceDir())
	require.Equal(t, filepath.Join("/var/lib/iis", "iis-download.tmp"), cfg.DownloadPath())
}
