package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks unusable configuration: no matching per-item
	// config file, malformed paths, missing toolkit roots.
	ErrConfiguration = errors.New("configuration error")
	// ErrData marks malformed or inconsistent pipeline data: bad lexicon
	// lines, identifier collisions after prefixing, divergent silence sets.
	ErrData = errors.New("data error")
	// ErrStep marks a delegated preparation, alignment, or training step
	// reporting failure.
	ErrStep = errors.New("step failure")
	// ErrState marks a missing upstream artifact or marker when a downstream
	// stage starts.
	ErrState = errors.New("state error")
	// ErrExternalTool marks failures launching or talking to the dispatcher
	// or toolkit binaries.
	ErrExternalTool = errors.New("external tool error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStep
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns a short label for the failure class of err, used in
// diagnostics and run history.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrData):
		return "data"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "step"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
