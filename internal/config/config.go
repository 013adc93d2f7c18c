package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir     string `toml:"work_dir"`
	ToolkitDir  string `toml:"toolkit_dir"`
	ResourceDir string `toml:"resource_dir"`
	ConfDir     string `toml:"conf_dir"`
	LogDir      string `toml:"log_dir"`
}

// Item names one language processed by the per-item sub-pipeline.
type Item struct {
	ID   string `toml:"id"`
	Tier string `toml:"tier"`
}

// Dispatch contains configuration for the external job dispatcher.
type Dispatch struct {
	Command string `toml:"command"`
	MaxJobs int    `toml:"max_jobs"`
}

// Workflow contains configuration for pipeline execution.
type Workflow struct {
	ItemWorkers  int `toml:"item_workers"`
	MinFreeGiB   int `toml:"min_free_gib"`
	StartStage   int `toml:"start_stage"`
	StageTimeout int `toml:"stage_timeout"`
}

// Trainer contains tunables forwarded to the toolkit training steps.
type Trainer struct {
	SubsetSmall  int `toml:"subset_small"`
	SubsetMedium int `toml:"subset_medium"`
	SubsetLarge  int `toml:"subset_large"`
	MonoGauss    int `toml:"mono_gauss"`
	TriLeaves    int `toml:"tri_leaves"`
	TriGauss     int `toml:"tri_gauss"`
	SatLeaves    int `toml:"sat_leaves"`
	SatGauss     int `toml:"sat_gauss"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for polytrain.
//
// Sections by subsystem:
//   - Paths: workspace, toolkit, shared resources, per-item configs, logs
//   - Items: the explicit item (language) set with resource tiers
//   - Dispatch: external job dispatcher command and parallelism
//   - Workflow: per-item worker bound and preflight thresholds
//   - Trainer: subset sizes and model-size tunables
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Items    []Item   `toml:"items"`
	Dispatch Dispatch `toml:"dispatch"`
	Workflow Workflow `toml:"workflow"`
	Trainer  Trainer  `toml:"trainer"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/polytrain/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("polytrain.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ToolkitDir) != "" {
		if c.Paths.ToolkitDir, err = expandPath(c.Paths.ToolkitDir); err != nil {
			return fmt.Errorf("paths.toolkit_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.ResourceDir) == "" && c.Paths.ToolkitDir != "" {
		c.Paths.ResourceDir = filepath.Join(c.Paths.ToolkitDir, "resources")
	}
	if strings.TrimSpace(c.Paths.ResourceDir) != "" {
		if c.Paths.ResourceDir, err = expandPath(c.Paths.ResourceDir); err != nil {
			return fmt.Errorf("paths.resource_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.ConfDir) == "" && c.Paths.ToolkitDir != "" {
		c.Paths.ConfDir = filepath.Join(c.Paths.ToolkitDir, "conf")
	}
	if strings.TrimSpace(c.Paths.ConfDir) != "" {
		if c.Paths.ConfDir, err = expandPath(c.Paths.ConfDir); err != nil {
			return fmt.Errorf("paths.conf_dir: %w", err)
		}
	}
	for i := range c.Items {
		c.Items[i].ID = strings.TrimSpace(c.Items[i].ID)
		c.Items[i].Tier = strings.ToLower(strings.TrimSpace(c.Items[i].Tier))
		if c.Items[i].Tier == "" {
			c.Items[i].Tier = defaultItemTier
		}
	}
	c.Dispatch.Command = strings.TrimSpace(c.Dispatch.Command)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ItemIDs returns the configured item identifiers in declaration order.
func (c *Config) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// ItemDir returns the workspace directory for one item.
func (c *Config) ItemDir(itemID string) string {
	return filepath.Join(c.Paths.WorkDir, "items", itemID)
}

// CombinedCorpusDir returns the merged-corpus directory.
func (c *Config) CombinedCorpusDir() string {
	return filepath.Join(c.Paths.WorkDir, "combined", "data")
}

// CombinedDictDir returns the merged-dictionary directory.
func (c *Config) CombinedDictDir() string {
	return filepath.Join(c.Paths.WorkDir, "combined", "dict")
}

// SubsetDir returns the directory for a named training subset of the merged
// corpus.
func (c *Config) SubsetDir(label string) string {
	return filepath.Join(c.Paths.WorkDir, "combined", "data_"+label)
}

// CleanedCorpusDir returns the re-segmented corpus directory produced by the
// cleanup stage.
func (c *Config) CleanedCorpusDir() string {
	return filepath.Join(c.Paths.WorkDir, "combined", "data_cleaned")
}

// LangDir returns the linguistic-model directory.
func (c *Config) LangDir() string {
	return filepath.Join(c.Paths.WorkDir, "combined", "lang")
}

// LangPPDir returns the linguistic-model directory rebuilt with re-estimated
// pronunciation probabilities.
func (c *Config) LangPPDir() string {
	return filepath.Join(c.Paths.WorkDir, "combined", "lang_pp")
}

// ExpDir returns the experiment directory holding per-step model output.
func (c *Config) ExpDir() string {
	return filepath.Join(c.Paths.WorkDir, "exp")
}

// StateDBPath returns the location of the pipeline state database.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.Paths.WorkDir, "state.db")
}

// LockPath returns the location of the single-run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.WorkDir, "polytrain.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
