package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"polytrain/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[paths]
toolkit_dir = "/opt/toolkit"

[[items]]
id = "cantonese"
tier = "limited"
`

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Dispatch.Command != "run.pl" {
		t.Fatalf("expected default dispatch command, got %q", cfg.Dispatch.Command)
	}
	if cfg.Paths.ConfDir != filepath.Join("/opt/toolkit", "conf") {
		t.Fatalf("expected conf dir derived from toolkit dir, got %q", cfg.Paths.ConfDir)
	}
	if cfg.Paths.ResourceDir != filepath.Join("/opt/toolkit", "resources") {
		t.Fatalf("expected resource dir derived from toolkit dir, got %q", cfg.Paths.ResourceDir)
	}
	if got := cfg.ItemIDs(); len(got) != 1 || got[0] != "cantonese" {
		t.Fatalf("unexpected item ids %v", got)
	}
}

func TestLoadRejectsMissingToolkitDir(t *testing.T) {
	path := writeConfig(t, `
[[items]]
id = "cantonese"
`)
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "toolkit_dir") {
		t.Fatalf("expected toolkit_dir error, got %v", err)
	}
}

func TestLoadRejectsDuplicateItems(t *testing.T) {
	path := writeConfig(t, `
[paths]
toolkit_dir = "/opt/toolkit"

[[items]]
id = "zulu"

[[items]]
id = "zulu"
`)
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "duplicate item") {
		t.Fatalf("expected duplicate item error, got %v", err)
	}
}

func TestLoadRejectsUnknownTier(t *testing.T) {
	path := writeConfig(t, `
[paths]
toolkit_dir = "/opt/toolkit"

[[items]]
id = "zulu"
tier = "medium"
`)
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "tier") {
		t.Fatalf("expected tier error, got %v", err)
	}
}

func TestLoadRejectsUnorderedSubsets(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
[trainer]
subset_small = 9000
subset_medium = 5000
subset_large = 20000
`)
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "nested") {
		t.Fatalf("expected nested subset error, got %v", err)
	}
}

func TestDerivedPaths(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cfg.ItemDir("zulu"); got != filepath.Join(cfg.Paths.WorkDir, "items", "zulu") {
		t.Fatalf("unexpected item dir %q", got)
	}
	if got := cfg.CombinedCorpusDir(); !strings.HasSuffix(got, filepath.Join("combined", "data")) {
		t.Fatalf("unexpected combined corpus dir %q", got)
	}
	if got := cfg.StateDBPath(); filepath.Dir(got) != cfg.Paths.WorkDir {
		t.Fatalf("state db should live under work dir, got %q", got)
	}
}
