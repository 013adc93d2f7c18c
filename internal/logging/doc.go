// Package logging configures slog for the pipeline: a console handler for
// interactive runs, a JSON handler for log files, and helpers that derive
// structured fields (item, stage, run id) from context.
package logging
