package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/iis-server-builder/internal/logger"
)

// RecoverOrphans removes temporary files a previous process lifetime left
// behind (a crash mid-download skips the regular cleanup path). When another
// live process with the same executable name is found, the files are left
// alone: that instance may own them.
func (o *Orchestrator) RecoverOrphans(ctx context.Context) error {
	orphans := make([]string, 0, 2)

	for _, path := range []string{o.cfg.DownloadPath(), o.cfg.ArchivePath() + stagingSuffix} {
		if _, err := os.Stat(path); err == nil {
			orphans = append(orphans, path)
		}
	}

	if len(orphans) == 0 {
		return nil
	}

	running, err := anotherInstanceRunning()
	if err != nil {
		logger.Warnf(ctx, "Could not scan processes: %v", err)
	}

	if running {
		logger.Warn(ctx, "Another builder instance is running, keeping its temporary files")
		return nil
	}

	for _, path := range orphans {
		if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove orphaned file %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Removed orphaned temporary file", "path", path)
	}

	return nil
}

// anotherInstanceRunning reports whether a different process shares this
// executable name.
func anotherInstanceRunning() (bool, error) {
	executable, err := os.Executable()
	if err != nil {
		return false, err
	}

	executableName := filepath.Base(executable)

	processes, err := ps.Processes()
	if err != nil {
		return false, err
	}

	thisProcessID := os.Getpid()

	for _, process := range processes {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executableName {
			return true, nil
		}
	}

	return false, nil
}
