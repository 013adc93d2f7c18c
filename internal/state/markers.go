package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MarkerName is the sentinel file written into an output directory once every
// step that produces the directory has succeeded. The external toolkit honors
// the same convention.
const MarkerName = ".done"

// MarkerPath returns the marker location for an output directory.
func MarkerPath(dir string) string {
	return filepath.Join(dir, MarkerName)
}

// IsComplete reports whether the output directory carries a completion marker.
func IsComplete(dir string) bool {
	info, err := os.Stat(MarkerPath(dir))
	return err == nil && !info.IsDir()
}

// MarkComplete records successful completion of the work that produced dir.
// The directory is created if the step itself produced no output files.
func MarkComplete(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %q: %w", dir, err)
	}
	if err := os.WriteFile(MarkerPath(dir), nil, 0o644); err != nil {
		return fmt.Errorf("write completion marker for %q: %w", dir, err)
	}
	return nil
}

// ClearMarker removes a completion marker so the guarded work reruns.
// Removing a marker that does not exist is not an error.
func ClearMarker(dir string) error {
	if err := os.Remove(MarkerPath(dir)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove completion marker for %q: %w", dir, err)
	}
	return nil
}
