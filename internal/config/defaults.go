package config

const (
	defaultWorkDir      = "~/.local/share/polytrain/work"
	defaultLogDir       = "~/.local/share/polytrain/logs"
	defaultDispatchCmd  = "run.pl"
	defaultDispatchJobs = 8
	defaultItemWorkers  = 4
	defaultMinFreeGiB   = 20
	defaultSubsetSmall  = 5000
	defaultSubsetMedium = 10000
	defaultSubsetLarge  = 20000
	defaultMonoGauss    = 1000
	defaultTriLeaves    = 2500
	defaultTriGauss     = 36000
	defaultSatLeaves    = 5000
	defaultSatGauss     = 100000
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultItemTier     = "limited"
)

// TierLimited and TierLarge are the recognized resource tiers for an item.
const (
	TierLimited = "limited"
	TierLarge   = "large"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Dispatch: Dispatch{
			Command: defaultDispatchCmd,
			MaxJobs: defaultDispatchJobs,
		},
		Workflow: Workflow{
			ItemWorkers: defaultItemWorkers,
			MinFreeGiB:  defaultMinFreeGiB,
		},
		Trainer: Trainer{
			SubsetSmall:  defaultSubsetSmall,
			SubsetMedium: defaultSubsetMedium,
			SubsetLarge:  defaultSubsetLarge,
			MonoGauss:    defaultMonoGauss,
			TriLeaves:    defaultTriLeaves,
			TriGauss:     defaultTriGauss,
			SatLeaves:    defaultSatLeaves,
			SatGauss:     defaultSatGauss,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
