package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the builder process.
type Config struct {
	// FolderURL is the public catalog folder whose contents are listed and downloaded.
	FolderURL string `mapstructure:"folder_url"`
	// ListenAddress is the address the HTTP layer binds to.
	ListenAddress string `mapstructure:"listen_addr"`
	// DataDir is where the published archive, version token and scratch workspace live.
	DataDir string `mapstructure:"data_dir"`
	// TemplateDir is the static base skeleton merged under each release archive.
	TemplateDir string `mapstructure:"template_dir"`
	// Timeout is the duration for remote catalog operations.
	Timeout time.Duration `mapstructure:"timeout"`
	// LogLevel is the minimum level for log output.
	LogLevel string `mapstructure:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for builder settings.
	DefaultConfigFilename = "iis-builder-settings.yaml"

	// DefaultListenAddress is used when no listen address is configured.
	DefaultListenAddress = ":8080"

	// DefaultTimeout is the default duration for remote catalog operations.
	DefaultTimeout = 30 * time.Second

	// envPrefix namespaces the environment variables read by viper.
	envPrefix = "IIS_BUILDER"

	// Artifact names inside DataDir.
	archiveFilename  = "iis-server.zip"
	versionFilename  = "iis-version.txt"
	manifestFilename = "iis-build-manifest.yaml"
	workspaceDirname = "workspace"
	downloadFilename = "iis-download.tmp"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errFolderURLRequired is returned when the catalog folder URL is missing.
	errFolderURLRequired = errors.New("catalog folder URL must be provided")
)

// Load reads configuration from environment variables, an optional YAML file
// and defaults, then validates essential fields.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// An empty default registers the key so AutomaticEnv can fill it.
	v.SetDefault("folder_url", "")
	v.SetDefault("listen_addr", DefaultListenAddress)
	v.SetDefault("data_dir", "data")
	v.SetDefault("template_dir", "template")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", "info")

	if path == "" {
		path = DefaultConfigFilename
	}

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		// A missing settings file is fine, everything can come from the
		// environment. Any other read failure surfaces: silently skipping
		// an explicitly passed file would hide its contents.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the provided settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.FolderURL == "" {
		return errFolderURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.FolderURL); err != nil {
		return fmt.Errorf("invalid catalog folder URL: %w", err)
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	if cfg.TemplateDir == "" {
		cfg.TemplateDir = "template"
	}

	return nil
}

// ArchivePath is the canonical location of the published server pack.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.DataDir, archiveFilename)
}

// VersionFilePath is the location of the persisted version token.
func (c *Config) VersionFilePath() string {
	return filepath.Join(c.DataDir, versionFilename)
}

// ManifestPath is the location of the build manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.DataDir, manifestFilename)
}

// WorkspaceDir is the scratch directory recreated on each build.
func (c *Config) WorkspaceDir() string {
	return filepath.Join(c.DataDir, workspaceDirname)
}

// DownloadPath is the temporary location of the in-flight release download.
func (c *Config) DownloadPath() string {
	return filepath.Join(c.DataDir, downloadFilename)
}
