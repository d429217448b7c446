package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mholt/archiver"
	copier "github.com/otiai10/copy"

	"github.com/oshokin/iis-server-builder/internal/domain/build"
	"github.com/oshokin/iis-server-builder/internal/logger"
)

// denylist names the client-only entries stripped from every server pack.
// Matching is by exact relative path, absence is not an error.
//
//nolint:gochecknoglobals // Fixed pack policy.
var denylist = []string{
	"mods/Xaeros_Minimap.jar",
	"mods/XaerosWorldMap.jar",
	"mods/OptiFine.jar",
	"options.txt",
}

// archivePrefix is the single top-level directory inside the output archive.
const archivePrefix = "iis-server"

// defaultDirMode is used when recreating the scratch workspace.
const defaultDirMode os.FileMode = 0o755

// StepError reports which transform phase a failed I/O operation belonged to.
type StepError struct {
	// Phase is the transform phase that was being worked on.
	Phase build.Phase
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("build step %s: %v", e.Phase, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *StepError) Unwrap() error {
	return e.Err
}

// stepError wraps err unless it is nil.
func stepError(phase build.Phase, err error) error {
	if err == nil {
		return nil
	}

	return &StepError{Phase: phase, Err: err}
}

// Engine turns a downloaded release archive into a ready-to-run server pack.
// It owns a scratch workspace directory which is cleared on every run.
type Engine struct {
	// workspaceDir is the scratch directory used for the merge.
	workspaceDir string
}

// NewEngine creates a transform engine using the provided scratch directory.
func NewEngine(workspaceDir string) *Engine {
	return &Engine{workspaceDir: workspaceDir}
}

// Transform merges the template under the release archive, strips denylisted
// entries, injects launcher scripts and repacks everything into outputPath.
// The optional sink is invoked with a typed phase tag as each step completes.
func (e *Engine) Transform(ctx context.Context, archivePath, templateDir, outputPath string, sink func(build.Phase)) error {
	report := func(phase build.Phase) {
		if sink != nil {
			sink(phase)
		}
	}

	if err := e.clearWorkspace(); err != nil {
		return stepError(build.PhaseWorkspaceCleared, err)
	}

	report(build.PhaseWorkspaceCleared)

	if err := copier.Copy(templateDir, e.workspaceDir); err != nil {
		return stepError(build.PhaseTemplateCopied, fmt.Errorf("copy template: %w", err))
	}

	logger.InfoKV(ctx, "Template copied into workspace", "template", templateDir)
	report(build.PhaseTemplateCopied)

	// Archive content takes precedence over template files with the same path.
	if err := archiver.Zip.Open(archivePath, e.workspaceDir); err != nil {
		return stepError(build.PhaseExtracted, fmt.Errorf("extract archive: %w", err))
	}

	report(build.PhaseExtracted)

	removed, err := e.removeDenylisted()
	if err != nil {
		return stepError(build.PhaseModsRemoved, err)
	}

	logger.InfoKV(ctx, "Removed client-only entries", "count", removed)
	report(build.PhaseModsRemoved)

	if err = e.writeLauncherScripts(); err != nil {
		return stepError(build.PhaseScriptsCreated, err)
	}

	report(build.PhaseScriptsCreated)

	if err = packDirectory(e.workspaceDir, outputPath, archivePrefix); err != nil {
		return stepError(build.PhaseArchived, err)
	}

	logger.InfoKV(ctx, "Server pack archived", "path", outputPath)
	report(build.PhaseArchived)

	// Leftovers are cleared by the next run's first step anyway.
	if err = os.RemoveAll(e.workspaceDir); err != nil {
		logger.Warnf(ctx, "Could not remove workspace: %v", err)
	}

	return nil
}

// clearWorkspace recreates the scratch directory empty.
func (e *Engine) clearWorkspace() error {
	if err := os.RemoveAll(e.workspaceDir); err != nil {
		return fmt.Errorf("clear workspace: %w", err)
	}

	if err := os.MkdirAll(e.workspaceDir, defaultDirMode); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	return nil
}

// removeDenylisted deletes denylisted entries present in the workspace
// and returns how many were actually removed.
func (e *Engine) removeDenylisted() (int, error) {
	removed := 0

	for _, entry := range denylist {
		path := filepath.Join(e.workspaceDir, filepath.FromSlash(entry))

		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return removed, fmt.Errorf("remove %s: %w", entry, err)
		}

		removed++
	}

	return removed, nil
}
