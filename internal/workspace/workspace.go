package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"polytrain/internal/config"
	"polytrain/internal/services"
)

// Workspace is one item's isolated working directory with its resolved
// configuration.
type Workspace struct {
	ItemID     string
	Tier       string
	Dir        string
	ConfigPath string
}

// Create builds the item workspace: the directory tree, symlinks to shared
// read-only resources, and the resolved per-item configuration. Creation is
// idempotent; rerunning over an existing workspace leaves it intact.
func Create(cfg *config.Config, item config.Item, matcher *Matcher) (*Workspace, error) {
	if matcher == nil {
		matcher = NewMatcher()
	}

	dir := cfg.ItemDir(item.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create item workspace %q: %w", dir, err)
	}

	if err := linkResources(cfg.Paths.ResourceDir, dir); err != nil {
		return nil, err
	}

	configPath, err := resolveConfig(cfg.Paths.ConfDir, item, matcher)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		ItemID:     item.ID,
		Tier:       item.Tier,
		Dir:        dir,
		ConfigPath: configPath,
	}, nil
}

// DataDir is where the item's prepared corpus lives.
func (w *Workspace) DataDir() string {
	return filepath.Join(w.Dir, "data")
}

// DictDir is where the item's standardized dictionary lives.
func (w *Workspace) DictDir() string {
	return filepath.Join(w.Dir, "dict")
}

// RawLexiconPath is where the preparation step leaves the unstandardized
// lexicon.
func (w *Workspace) RawLexiconPath() string {
	return filepath.Join(w.Dir, "lexicon.raw")
}

// RulesPath is the item's phone standardization rule table, kept alongside
// the per-item configs.
func RulesPath(cfg *config.Config, itemID string) string {
	return filepath.Join(cfg.Paths.ConfDir, "rules", itemID+".rules")
}

// linkResources symlinks every entry of resourceDir into the workspace.
// Existing links are left alone so reruns stay cheap; resources are read-only
// for the pipeline's lifetime.
func linkResources(resourceDir, workDir string) error {
	if resourceDir == "" {
		return nil
	}
	entries, err := os.ReadDir(resourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read resource directory %q: %w", resourceDir, err)
	}
	for _, entry := range entries {
		target := filepath.Join(resourceDir, entry.Name())
		link := filepath.Join(workDir, entry.Name())
		if _, err := os.Lstat(link); err == nil {
			continue
		}
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("link resource %q: %w", entry.Name(), err)
		}
	}
	return nil
}

func resolveConfig(confDir string, item config.Item, matcher *Matcher) (string, error) {
	entries, err := os.ReadDir(confDir)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workspace", "resolve config",
			fmt.Sprintf("read configuration directory %q", confDir), err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	name, err := matcher.Resolve(item.ID, item.Tier, names)
	if err != nil {
		return "", err
	}
	return filepath.Join(confDir, name), nil
}
