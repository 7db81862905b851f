package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"omrpipe/internal/config"
	"omrpipe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEngine verifies that the configured engine executable is runnable and
// that the selected preset exists.
func CheckEngine(_ context.Context, cfg *config.Config) Result {
	const name = "Audiveris"
	status := deps.CheckBinaries([]deps.Requirement{{Name: name, Command: cfg.Engine.Executable}})[0]
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}
	if _, ok := cfg.Presets[cfg.Engine.Preset]; !ok {
		return Result{Name: name, Detail: fmt.Sprintf("preset %q is not defined", cfg.Engine.Preset)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (preset %s)", status.Command, cfg.Engine.Preset)}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// The status command renders these; only the engine itself is fatal.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Audiveris",
			Command:     cfg.Engine.Executable,
			Description: "Required for score conversion",
		},
	}
	statuses := deps.CheckBinaries(requirements)
	java := deps.CheckJavaForEngine(cfg.Engine.Executable)
	java.Optional = true
	return append(statuses, java)
}
