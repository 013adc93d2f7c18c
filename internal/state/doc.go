// Package state tracks pipeline completion. Sentinel marker files inside
// stage and step output directories are the source of truth for resumability;
// a SQLite database records run history for diagnostics. Marker presence, not
// content, signals success.
package state
