package builder

import (
	"fmt"
	"os"
	"path/filepath"
)

// Launcher invocation baked into every pack. The jar name and heap flags
// match what the runtime in the template expects.
const (
	unixLauncherName    = "start.sh"
	windowsLauncherName = "start.bat"

	unixLauncherScript = "#!/bin/sh\n" +
		"java -Xms4G -Xmx8G -jar server.jar nogui\n"

	windowsLauncherScript = "@echo off\r\n" +
		"java -Xms4G -Xmx8G -jar server.jar nogui\r\n" +
		"pause\r\n"

	// executableMode marks the Unix launcher runnable.
	executableMode os.FileMode = 0o755
	// scriptMode is used for the Windows launcher.
	scriptMode os.FileMode = 0o644
)

// writeLauncherScripts generates both launcher scripts at the workspace root.
func (e *Engine) writeLauncherScripts() error {
	unixPath := filepath.Join(e.workspaceDir, unixLauncherName)
	if err := os.WriteFile(unixPath, []byte(unixLauncherScript), executableMode); err != nil {
		return fmt.Errorf("write %s: %w", unixLauncherName, err)
	}

	// WriteFile honors umask, an explicit chmod keeps the script executable.
	if err := os.Chmod(unixPath, executableMode); err != nil {
		return fmt.Errorf("chmod %s: %w", unixLauncherName, err)
	}

	windowsPath := filepath.Join(e.workspaceDir, windowsLauncherName)
	if err := os.WriteFile(windowsPath, []byte(windowsLauncherScript), scriptMode); err != nil {
		return fmt.Errorf("write %s: %w", windowsLauncherName, err)
	}

	return nil
}
