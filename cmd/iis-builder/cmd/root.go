package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/iis-server-builder/internal/config"
	"github.com/oshokin/iis-server-builder/internal/service/web"
	"github.com/oshokin/iis-server-builder/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// listenAddress overrides the configured HTTP listen address.
	listenAddress string
	// dataDir overrides the configured artifact directory.
	dataDir string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the builder.
	rootCmd = &cobra.Command{
		Use:   "iis-builder",
		Short: "Watch a public folder for releases and serve built server packs.",
		Long: `Runs the server-pack builder: it probes a public cloud-disk folder for new
release archives, turns the newest one into a ready-to-run server pack and
serves it over HTTP together with live build progress.

Settings come from environment variables (IIS_BUILDER_*) or an optional YAML
file. The catalog folder URL is required; everything else has defaults.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &web.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				DataDir:       dataDir,
				LogLevel:      logLevel,
			}

			return web.Run(ctx, options)
		},
	}
)

// Execute runs the iis-builder CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&listenAddress, "listen-addr", "l", "", "HTTP listen address override")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "artifact directory override")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}
