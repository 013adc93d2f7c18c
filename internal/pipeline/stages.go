package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/lexicon"
	"polytrain/internal/logging"
	"polytrain/internal/merge"
	"polytrain/internal/prepare"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/trainer"
	"polytrain/internal/workspace"
)

// Build wires the full stage chain into a Runner.
func Build(cfg *config.Config, client *dispatch.Client, store *state.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{cfg: cfg, store: store, logger: logger}

	preparer := prepare.New(cfg, client, logger)
	tr := trainer.New(cfg, client,
		trainer.WithLogger(logger),
		trainer.WithObserver(r.recordStep))

	r.stages = []Stage{
		{Ordinal: 0, Name: "prepare", Run: func(ctx context.Context) error {
			return forEachItem(ctx, cfg.Items, cfg.Workflow.ItemWorkers, func(ctx context.Context, item config.Item) error {
				_, err := preparer.Prepare(ctx, item)
				return err
			})
		}},
		{Ordinal: 1, Name: "combine", Run: func(ctx context.Context) error {
			return combine(cfg, logging.WithContext(ctx, logger))
		}},
		{Ordinal: 2, Name: "lang", Run: tr.BuildLang},
		{Ordinal: 3, Name: "mono", Run: tr.TrainMono},
		{Ordinal: 4, Name: "tri", Run: tr.TrainTri},
		{Ordinal: 5, Name: "sat", Run: tr.TrainSat},
		{Ordinal: 6, Name: "segment", Run: tr.Segment},
		{Ordinal: 7, Name: "final", Run: tr.TrainFinal},
	}
	return r
}

// combine prefixes every prepared item corpus and merges corpora and
// dictionaries into the combined dataset. It only runs once every item
// carries both preparation markers; a missing item aborts the stage so no
// partial merge is ever written.
func combine(cfg *config.Config, logger *slog.Logger) error {
	dataDir := cfg.CombinedCorpusDir()
	dictDir := cfg.CombinedDictDir()
	if state.IsComplete(dataDir) && state.IsComplete(dictDir) {
		logger.Debug("combined dataset already complete")
		return nil
	}

	workspaces := make([]workspace.Workspace, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		ws := workspace.Workspace{ItemID: item.ID, Tier: item.Tier, Dir: cfg.ItemDir(item.ID)}
		if !state.IsComplete(ws.DataDir()) || !state.IsComplete(ws.DictDir()) {
			return services.Wrap(services.ErrState, "combine", "check items",
				fmt.Sprintf("item %s is not fully prepared", item.ID), nil)
		}
		workspaces = append(workspaces, ws)
	}

	if !state.IsComplete(dataDir) {
		corpora := make(map[string]*corpus.Corpus, len(workspaces))
		for _, ws := range workspaces {
			c, err := corpus.Read(ws.DataDir())
			if err != nil {
				return err
			}
			prefixed, err := corpus.Prefix(c, ws.ItemID)
			if err != nil {
				return err
			}
			corpora[ws.ItemID] = prefixed
		}
		combined, err := merge.Corpora(corpora)
		if err != nil {
			return err
		}
		if err := corpus.Write(combined, dataDir); err != nil {
			return err
		}
		if err := state.MarkComplete(dataDir); err != nil {
			return err
		}
		logger.Info("corpora merged",
			logging.Int("items", len(workspaces)), logging.Int("utterances", combined.Len()))
	}

	if !state.IsComplete(dictDir) {
		dicts := make(map[string]*lexicon.Dictionary, len(workspaces))
		for _, ws := range workspaces {
			dict, err := lexicon.ReadDict(ws.DictDir())
			if err != nil {
				return err
			}
			dicts[ws.ItemID] = dict
		}
		merged, conflicts, err := merge.Dictionaries(dicts)
		if err != nil {
			return err
		}
		for _, conflict := range conflicts {
			logger.Debug("word has cross-item pronunciation alternates",
				logging.String("word", conflict.Word), logging.Int("pronunciations", conflict.Pronunciations))
		}
		if err := lexicon.WriteDict(merged, dictDir); err != nil {
			return err
		}
		if err := state.MarkComplete(dictDir); err != nil {
			return err
		}
		logger.Info("dictionaries merged",
			logging.Int("words", merged.Len()), logging.Int("conflicts", len(conflicts)))
	}
	return nil
}
