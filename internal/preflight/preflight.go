package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"polytrain/internal/config"
	"polytrain/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Workspace", cfg.Paths.WorkDir),
		CheckDirectoryExists("Toolkit", cfg.Paths.ToolkitDir),
		CheckDirectoryExists("Config directory", cfg.Paths.ConfDir),
		CheckDispatcher(cfg.Dispatch.Command),
	}
	if cfg.Workflow.MinFreeGiB > 0 {
		results = append(results, CheckFreeDisk("Free disk", cfg.Paths.WorkDir, uint64(cfg.Workflow.MinFreeGiB)))
	}
	return results
}

// FirstFailure converts the first failed result into a configuration error,
// or nil when everything passed.
func FirstFailure(results []Result) error {
	for _, result := range results {
		if !result.Passed {
			return services.Wrap(services.ErrConfiguration, "preflight", result.Name, result.Detail, nil)
		}
	}
	return nil
}

// CheckDirectoryExists verifies that a configured directory is present.
func CheckDirectoryExists(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not accessible (%v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDirectoryAccess verifies a directory exists and is fully accessible,
// creating it when absent.
func CheckDirectoryAccess(name, path string) Result {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cannot create %s (%v)", path, err)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("insufficient permissions on %s (%v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckDispatcher verifies the dispatcher command resolves to an executable.
func CheckDispatcher(command string) Result {
	const name = "Dispatcher"
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Detail: "dispatch.command not configured"}
	}
	resolved, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q not found in PATH (%v)", command, err)}
	}
	return Result{Name: name, Passed: true, Detail: resolved}
}

// CheckFreeDisk verifies the filesystem holding path has at least minGiB free.
func CheckFreeDisk(name, path string, minGiB uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s (%v)", path, err)}
	}
	freeGiB := stat.Bavail * uint64(stat.Bsize) / (1 << 30)
	if freeGiB < minGiB {
		return Result{Name: name, Detail: fmt.Sprintf("%d GiB free, %d GiB required", freeGiB, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d GiB free", freeGiB)}
}
