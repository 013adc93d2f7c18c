// Package config resolves and holds process-wide pipeline configuration:
// workspace paths, the item (language) set with resource tiers, dispatcher
// settings, and trainer tunables. A Config is read-only after Load returns.
package config
