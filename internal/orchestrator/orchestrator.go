package orchestrator

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/iis-server-builder/internal/builder"
	"github.com/oshokin/iis-server-builder/internal/catalog"
	"github.com/oshokin/iis-server-builder/internal/config"
	"github.com/oshokin/iis-server-builder/internal/domain/build"
	"github.com/oshokin/iis-server-builder/internal/logger"
	"github.com/oshokin/iis-server-builder/internal/repository/buildinfo"
	"github.com/oshokin/iis-server-builder/internal/verify"

	// Ensure MD5 is available for the atomic archive replacement.
	_ "crypto/md5"
)

const (
	// archiveChecksumFunction guards the final rename-over of the archive.
	archiveChecksumFunction crypto.Hash = crypto.MD5

	// archiveFileMode is the mode of the published archive.
	archiveFileMode os.FileMode = 0o644

	// defaultVerifyPause smooths the verify stage for status pollers; the
	// actual verification already ran inside the download.
	defaultVerifyPause = 300 * time.Millisecond

	// stagingSuffix marks the not-yet-published output of a transform.
	stagingSuffix = ".staging"
)

// applyArchiveUpdate performs the checksum-guarded rename-over of the
// published archive. Swapped out in tests to drive publish failures.
//
//nolint:gochecknoglobals // Test seam.
var applyArchiveUpdate = goupdate.Apply

// CatalogClient is the slice of the catalog the orchestrator depends on.
type CatalogClient interface {
	ProbeUpdate(ctx context.Context, currentVersion string) (*catalog.VersionProbe, error)
	Download(ctx context.Context, remotePath, destPath string, opts verify.Options) error
}

// Orchestrator sequences the download-verify-build pipeline and owns the
// process-wide progress record. At most one build runs at a time; everyone
// else observes snapshots.
type Orchestrator struct {
	// cfg provides artifact paths and the template location.
	cfg *config.Config
	// catalog lists and downloads release archives.
	catalog CatalogClient
	// engine transforms a release archive into a server pack.
	engine *builder.Engine
	// repo persists the version token and the build manifest.
	repo *buildinfo.Repository
	// state is the singleton progress record, guarded by mu.
	state *build.State
	// mu guards state, including the running gate.
	mu sync.Mutex
	// verifyPause is how long the cosmetic verify stage lingers.
	verifyPause time.Duration
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithVerifyPause overrides the cosmetic verify stage pause.
func WithVerifyPause(pause time.Duration) Option {
	return func(o *Orchestrator) {
		o.verifyPause = pause
	}
}

// New creates an orchestrator with all stages pending and no build running.
func New(cfg *config.Config, catalogClient CatalogClient, repo *buildinfo.Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		catalog:     catalogClient,
		engine:      builder.NewEngine(cfg.WorkspaceDir()),
		repo:        repo,
		state:       build.NewState(),
		verifyPause: defaultVerifyPause,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Status returns a read-only deep copy of the progress record.
// Safe to call concurrently at any time, it never blocks on a build.
func (o *Orchestrator) Status() *build.State {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.state.Clone()
}

// CheckForUpdate reads the persisted version and probes the catalog.
// Failures surface to the caller, who may keep serving the previous artifact.
func (o *Orchestrator) CheckForUpdate(ctx context.Context) (*catalog.VersionProbe, error) {
	current, err := o.repo.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	return o.catalog.ProbeUpdate(ctx, current)
}

// RequestBuild starts the pipeline for the probed release unless a build is
// already running, in which case the call is a no-op and the caller should
// poll Status instead. The run executes on its own goroutine; this call
// returns immediately.
func (o *Orchestrator) RequestBuild(probe *catalog.VersionProbe) {
	o.mu.Lock()

	if o.state.Running {
		o.mu.Unlock()
		return
	}

	o.state.Running = true
	o.state.Reset()
	o.mu.Unlock()

	// Detached from the trigger's request context on purpose: the run
	// outlives the caller and is observed only through the state record.
	ctx := logger.WithName(context.Background(), "build-run")

	go o.run(ctx, probe)
}

// run executes one full pipeline pass. Errors are recorded into the failed
// stage, never propagated: callers only observe state.
func (o *Orchestrator) run(ctx context.Context, probe *catalog.VersionProbe) {
	downloadPath := o.cfg.DownloadPath()
	stagingPath := o.cfg.ArchivePath() + stagingSuffix

	// Release the build slot on every exit path: drop the temp download,
	// then reopen the gate.
	defer func() {
		removeIfPresent(ctx, downloadPath)
		removeIfPresent(ctx, stagingPath)

		o.mu.Lock()
		o.state.Running = false
		o.mu.Unlock()

		logger.Info(ctx, "Build slot released")
	}()

	// The update check already happened to produce the probe.
	o.setStage(build.StageUpdateCheck, build.StatusCompleted, "found "+probe.LatestVersion)
	o.setStage(build.StageDownload, build.StatusInProgress, "")

	opts := verify.Options{ExpectedChecksum: probe.Source.Checksum}
	if probe.Source.SizeBytes > 0 {
		expectedSize := probe.Source.SizeBytes
		opts.ExpectedSizeBytes = &expectedSize
	}

	if err := o.catalog.Download(ctx, probe.Source.RemotePath, downloadPath, opts); err != nil {
		o.fail(ctx, err)
		return
	}

	o.setStage(build.StageDownload, build.StatusCompleted, "")
	o.setStage(build.StageVerify, build.StatusInProgress, "")

	// Integrity was checked inside the download; the pause keeps the
	// stage visible to pollers.
	time.Sleep(o.verifyPause)

	o.setStage(build.StageVerify, build.StatusCompleted, "")
	o.setStage(build.StageCopyTemplate, build.StatusInProgress, "")

	err := o.engine.Transform(ctx, downloadPath, o.cfg.TemplateDir, stagingPath, o.onPhase)
	if err != nil {
		o.fail(ctx, err)
		return
	}

	if err = o.publish(ctx, probe, stagingPath); err != nil {
		o.fail(ctx, err)
		return
	}

	o.setStage(build.StageFinalize, build.StatusCompleted, "")
	o.setMessage("Build completed: " + probe.LatestVersion)

	logger.InfoKV(ctx, "Build completed", "version", probe.LatestVersion)
}

// onPhase maps a transform phase to its stage transition: the finished
// stage completes and the next one starts.
func (o *Orchestrator) onPhase(phase build.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch phase {
	case build.PhaseWorkspaceCleared:
		// The template stage is already in progress.
	case build.PhaseTemplateCopied:
		o.state.SetStage(build.StageCopyTemplate, build.StatusCompleted, "")
		o.state.SetStage(build.StageExtract, build.StatusInProgress, "")
	case build.PhaseExtracted:
		o.state.SetStage(build.StageExtract, build.StatusCompleted, "")
		o.state.SetStage(build.StageRemoveMods, build.StatusInProgress, "")
	case build.PhaseModsRemoved:
		o.state.SetStage(build.StageRemoveMods, build.StatusCompleted, "")
		o.state.SetStage(build.StageCreateScripts, build.StatusInProgress, "")
	case build.PhaseScriptsCreated:
		o.state.SetStage(build.StageCreateScripts, build.StatusCompleted, "")
		o.state.SetStage(build.StagePackArchive, build.StatusInProgress, "")
	case build.PhaseArchived:
		o.state.SetStage(build.StagePackArchive, build.StatusCompleted, "")
		o.state.SetStage(build.StageFinalize, build.StatusInProgress, "")
	}
}

// publish atomically replaces the served archive with the staged one,
// then records the manifest and the version token. The rename-over keeps
// concurrent downloads on either the old artifact or the new one, never
// a torn write.
func (o *Orchestrator) publish(ctx context.Context, probe *catalog.VersionProbe, stagingPath string) error {
	archivePath := o.cfg.ArchivePath()

	checksum, err := verify.FileChecksum(stagingPath)
	if err != nil {
		return err
	}

	checksumBytes, err := hex.DecodeString(checksum)
	if err != nil {
		return fmt.Errorf("decode staged checksum: %w", err)
	}

	info, err := os.Stat(stagingPath)
	if err != nil {
		return err
	}

	stagedFile, err := os.Open(filepath.Clean(stagingPath))
	if err != nil {
		return err
	}

	// The replacement needs an existing target to swap out; a first build
	// has none. The placeholder is tracked so a failed publish does not
	// leave a zero-byte file where the download handler would find it.
	placeholderCreated := false

	if _, err = os.Stat(archivePath); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(archivePath, nil, archiveFileMode); err != nil {
			_ = stagedFile.Close()

			return fmt.Errorf("create archive placeholder: %w", err)
		}

		placeholderCreated = true
	}

	applyErr := applyArchiveUpdate(stagedFile, goupdate.Options{
		TargetPath: archivePath,
		TargetMode: archiveFileMode,
		Checksum:   checksumBytes,
		Hash:       archiveChecksumFunction,
	})

	if closeErr := stagedFile.Close(); applyErr == nil {
		applyErr = closeErr
	}

	if applyErr != nil {
		if placeholderCreated {
			removeIfPresent(ctx, archivePath)
		}

		return fmt.Errorf("publish archive: %w", applyErr)
	}

	removeIfPresent(ctx, archivePath+".old")

	manifest := &buildinfo.Manifest{
		Version:    probe.LatestVersion,
		SourceName: probe.Source.Name,
		Checksum:   checksum,
		SizeBytes:  info.Size(),
		BuiltAt:    time.Now().UTC(),
	}

	if err = o.repo.SaveManifest(ctx, manifest); err != nil {
		return err
	}

	return o.repo.SaveVersion(ctx, probe.LatestVersion)
}

// fail marks the stage currently in progress as failed and records a
// summary. The error stops here, status pollers see everything they need.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.mu.Lock()

	if idx := o.state.InProgress(); idx >= 0 {
		o.state.SetStage(idx, build.StatusFailed, err.Error())
	}

	o.state.StatusMessage = "Build failed: " + err.Error()
	o.mu.Unlock()

	logger.ErrorKV(ctx, "Build failed", "error", err)
}

// setStage updates one stage under the lock.
func (o *Orchestrator) setStage(i int, status build.StageStatus, detail string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.SetStage(i, status, detail)
}

// setMessage updates the status message under the lock.
func (o *Orchestrator) setMessage(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.StatusMessage = message
}

// removeIfPresent deletes a file, logging anything unexpected.
func removeIfPresent(ctx context.Context, path string) {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(ctx, "Could not remove %s: %v", path, err)
	}
}
