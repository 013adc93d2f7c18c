package pipeline

import (
	"fmt"
	"path/filepath"

	"polytrain/internal/config"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/trainer"
	"polytrain/internal/workspace"
)

// stagePaths lists the marker directories belonging to one stage. Primary
// directories decide the stage's completion status; owned adds the auxiliary
// outputs (alignments, subsets) that a reset must also clear.
type stagePaths struct {
	primary []string
	owned   []string
}

func pathsFor(cfg *config.Config, ordinal int) stagePaths {
	exp := func(name string) string { return filepath.Join(cfg.ExpDir(), name) }
	switch ordinal {
	case 0:
		var dirs []string
		for _, item := range cfg.Items {
			ws := workspace.Workspace{ItemID: item.ID, Tier: item.Tier, Dir: cfg.ItemDir(item.ID)}
			dirs = append(dirs, ws.DataDir(), ws.DictDir())
		}
		return stagePaths{primary: dirs}
	case 1:
		return stagePaths{primary: []string{cfg.CombinedCorpusDir(), cfg.CombinedDictDir()}}
	case 2:
		return stagePaths{primary: []string{cfg.LangDir()}}
	case 3:
		return stagePaths{
			primary: []string{exp("mono")},
			owned:   []string{cfg.SubsetDir(trainer.SubsetSmall)},
		}
	case 4:
		return stagePaths{
			primary: []string{exp("tri")},
			owned:   []string{exp("mono_ali"), cfg.SubsetDir(trainer.SubsetMedium)},
		}
	case 5:
		return stagePaths{
			primary: []string{exp("sat"), cfg.LangPPDir()},
			owned:   []string{exp("tri_ali"), exp("sat_prons"), cfg.SubsetDir(trainer.SubsetLarge)},
		}
	case 6:
		return stagePaths{
			primary: []string{cfg.CleanedCorpusDir()},
			owned:   []string{exp("sat_ali")},
		}
	case 7:
		return stagePaths{
			primary: []string{exp("final")},
			owned:   []string{exp("final_ali")},
		}
	default:
		return stagePaths{}
	}
}

// StageStatus reports the marker state of one stage.
type StageStatus struct {
	Ordinal  int
	Name     string
	Complete bool
}

// Status inspects the completion markers of every stage.
func Status(cfg *config.Config) []StageStatus {
	names := StageNames()
	statuses := make([]StageStatus, 0, len(names))
	for ordinal, name := range names {
		complete := true
		for _, dir := range pathsFor(cfg, ordinal).primary {
			if !state.IsComplete(dir) {
				complete = false
				break
			}
		}
		statuses = append(statuses, StageStatus{Ordinal: ordinal, Name: name, Complete: complete})
	}
	return statuses
}

// Reset clears the completion markers of every stage at or after from, forcing
// those stages to rerun. It returns the directories whose marker was removed.
func Reset(cfg *config.Config, from int) ([]string, error) {
	names := StageNames()
	if from < 0 || from >= len(names) {
		return nil, services.Wrap(services.ErrConfiguration, "reset", "validate",
			fmt.Sprintf("stage ordinal %d outside range 0..%d", from, len(names)-1), nil)
	}

	var cleared []string
	for ordinal := from; ordinal < len(names); ordinal++ {
		paths := pathsFor(cfg, ordinal)
		for _, dir := range append(append([]string(nil), paths.primary...), paths.owned...) {
			if !state.IsComplete(dir) {
				continue
			}
			if err := state.ClearMarker(dir); err != nil {
				return cleared, err
			}
			cleared = append(cleared, dir)
		}
	}
	return cleared, nil
}
