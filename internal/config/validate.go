package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateItems(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTrainer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ToolkitDir) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/polytrain/config.toml"
		}
		return fmt.Errorf("paths.toolkit_dir is required. Edit %s (create with 'polytrain config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateItems() error {
	if len(c.Items) == 0 {
		return errors.New("at least one [[items]] entry must be configured")
	}
	seen := make(map[string]struct{}, len(c.Items))
	for i, item := range c.Items {
		if item.ID == "" {
			return fmt.Errorf("items[%d].id must be set", i)
		}
		if strings.ContainsAny(item.ID, " \t/") {
			return fmt.Errorf("items[%d].id %q must not contain whitespace or path separators", i, item.ID)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}
		switch item.Tier {
		case TierLimited, TierLarge:
		default:
			return fmt.Errorf("items[%d].tier must be %q or %q, got %q", i, TierLimited, TierLarge, item.Tier)
		}
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.Command == "" {
		return errors.New("dispatch.command must be set")
	}
	if c.Dispatch.MaxJobs <= 0 {
		return errors.New("dispatch.max_jobs must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ItemWorkers <= 0 {
		return errors.New("workflow.item_workers must be positive")
	}
	if c.Workflow.MinFreeGiB < 0 {
		return errors.New("workflow.min_free_gib must not be negative")
	}
	if c.Workflow.StartStage < 0 {
		return errors.New("workflow.start_stage must not be negative")
	}
	if c.Workflow.StageTimeout < 0 {
		return errors.New("workflow.stage_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateTrainer() error {
	t := c.Trainer
	for name, value := range map[string]int{
		"trainer.subset_small":  t.SubsetSmall,
		"trainer.subset_medium": t.SubsetMedium,
		"trainer.subset_large":  t.SubsetLarge,
		"trainer.mono_gauss":    t.MonoGauss,
		"trainer.tri_leaves":    t.TriLeaves,
		"trainer.tri_gauss":     t.TriGauss,
		"trainer.sat_leaves":    t.SatLeaves,
		"trainer.sat_gauss":     t.SatGauss,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if t.SubsetSmall > t.SubsetMedium || t.SubsetMedium > t.SubsetLarge {
		return errors.New("trainer subsets must be nested: subset_small <= subset_medium <= subset_large")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}
