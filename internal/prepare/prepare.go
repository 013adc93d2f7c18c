// Package prepare runs the per-item sub-pipeline: workspace creation, corpus
// preparation through the toolkit, and lexicon standardization. Each step is
// guarded by a completion marker so reruns skip finished work.
package prepare

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"polytrain/internal/config"
	"polytrain/internal/corpus"
	"polytrain/internal/dispatch"
	"polytrain/internal/lexicon"
	"polytrain/internal/logging"
	"polytrain/internal/services"
	"polytrain/internal/state"
	"polytrain/internal/workspace"
)

// prepareScript is the toolkit entry point that turns an item's raw resources
// into corpus files and a raw lexicon inside the workspace.
const prepareScript = "local/prepare_item.sh"

// Preparer executes the preparation steps for one item at a time. It is safe
// for concurrent use across distinct items.
type Preparer struct {
	cfg     *config.Config
	client  *dispatch.Client
	matcher *workspace.Matcher
	logger  *slog.Logger
}

// New constructs a Preparer.
func New(cfg *config.Config, client *dispatch.Client, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Preparer{
		cfg:     cfg,
		client:  client,
		matcher: workspace.NewMatcher(),
		logger:  logger,
	}
}

// Prepare runs the full per-item sequence and returns the item workspace.
// Steps whose output directory already carries a completion marker are
// skipped; a failed step leaves no marker so the next run retries it.
func (p *Preparer) Prepare(ctx context.Context, item config.Item) (*workspace.Workspace, error) {
	logger := p.logger.With(logging.Args(
		logging.String(logging.FieldComponent, "prepare"),
		logging.String(logging.FieldItem, item.ID),
	)...)

	ws, err := workspace.Create(p.cfg, item, p.matcher)
	if err != nil {
		return nil, err
	}
	logger.Debug("workspace ready",
		logging.String("dir", ws.Dir),
		logging.String("config", filepath.Base(ws.ConfigPath)))

	if err := p.prepareCorpus(ctx, ws, logger); err != nil {
		return nil, err
	}
	if err := p.standardizeLexicon(ws, logger); err != nil {
		return nil, err
	}
	return ws, nil
}

// prepareCorpus invokes the toolkit preparation script and validates its
// output before marking the data directory complete.
func (p *Preparer) prepareCorpus(ctx context.Context, ws *workspace.Workspace, logger *slog.Logger) error {
	dataDir := ws.DataDir()
	if state.IsComplete(dataDir) {
		logger.Debug("corpus already prepared", logging.String("dir", dataDir))
		return nil
	}

	job := dispatch.Job{
		Name:   fmt.Sprintf("prepare/%s", ws.ItemID),
		Script: filepath.Join(p.cfg.Paths.ToolkitDir, prepareScript),
		Args:   []string{ws.ItemID, ws.Tier, ws.ConfigPath, ws.Dir},
		Dir:    ws.Dir,
	}
	logger.Info("preparing corpus", logging.String("script", prepareScript))
	if err := p.client.Submit(ctx, job); err != nil {
		return err
	}

	prepared, err := corpus.Read(dataDir)
	if err != nil {
		return err
	}
	if prepared.Len() == 0 {
		return services.Wrap(services.ErrData, "prepare", "validate corpus",
			fmt.Sprintf("item %s produced an empty corpus", ws.ItemID), nil)
	}
	logger.Info("corpus prepared", logging.Int("utterances", prepared.Len()))
	return state.MarkComplete(dataDir)
}

// standardizeLexicon converts the raw lexicon left by the preparation script
// into the canonical dictionary layout, applying the item's phone rules.
func (p *Preparer) standardizeLexicon(ws *workspace.Workspace, logger *slog.Logger) error {
	dictDir := ws.DictDir()
	if state.IsComplete(dictDir) {
		logger.Debug("lexicon already standardized", logging.String("dir", dictDir))
		return nil
	}

	raw, err := lexicon.ParseLexicon(ws.RawLexiconPath())
	if err != nil {
		return err
	}
	rules, err := lexicon.LoadRules(workspace.RulesPath(p.cfg, ws.ItemID))
	if err != nil {
		return err
	}
	standardized, err := raw.Standardize(rules)
	if err != nil {
		return err
	}
	if err := lexicon.WriteDict(standardized, dictDir); err != nil {
		return err
	}
	logger.Info("lexicon standardized", logging.Int("words", standardized.Len()))
	return state.MarkComplete(dictDir)
}
