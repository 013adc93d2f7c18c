// Package services provides the shared error taxonomy and context plumbing
// used across pipeline stages. Errors are tagged with sentinel markers so the
// top-level handler can classify failures without string inspection.
package services
