// Package workspace prepares per-item working directories: isolated output
// trees, symlinked shared read-only resources, and deterministic per-item
// configuration resolution over a ranked pattern list.
package workspace
