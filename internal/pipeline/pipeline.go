// Package pipeline orchestrates a download run: probe candidate
// combinations, fetch catalogs and series, assemble the panel, and persist
// artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/HarllyZhou/statcn-etl/internal/config"
	"github.com/HarllyZhou/statcn-etl/internal/domain"
	"github.com/HarllyZhou/statcn-etl/internal/observability"
)

// StatsAPI is the slice of the easyquery client the pipeline needs.
type StatsAPI interface {
	BootSession(ctx context.Context, cn string) error
	FetchTree(ctx context.Context, dbcode, wdcode, cn string) ([]domain.TreeNode, error)
	FetchSeries(ctx context.Context, dbcode, zbCode, cn string) (domain.QueryResult, error)
}

// ArtifactSink persists catalog and panel artifacts.
type ArtifactSink interface {
	WriteTree(db, wdcode string, nodes []domain.TreeNode) (string, error)
	WriteRegionNames(names map[string]string) (string, error)
	WritePanel(p *domain.Panel) (string, error)
}

// PanelPublisher pushes assembled rows to a broker.
type PanelPublisher interface {
	PublishPanel(ctx context.Context, p *domain.Panel) error
}

// Combination is a viable (locale, database) pair found by probing.
type Combination struct {
	CN string
	DB string
}

// Trees holds the two catalog trees of a probed combination.
type Trees struct {
	Indicators []domain.TreeNode
	Regions    []domain.TreeNode
}

// Pipeline runs the download end to end.
type Pipeline struct {
	api       StatsAPI
	sink      ArtifactSink
	publisher PanelPublisher // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
	cfg       *config.Config
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(api StatsAPI, sink ArtifactSink, publisher PanelPublisher, logger *slog.Logger, metrics *observability.Metrics, cfg *config.Config) *Pipeline {
	return &Pipeline{
		api:       api,
		sink:      sink,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		cfg:       cfg,
	}
}

// CheckReadiness returns nil once a viable combination has been found.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no viable locale/database combination found yet")
	}
	return nil
}

// Probe walks the candidate locale/database grid until one combination
// yields non-empty indicator and region trees. Transport failures, shape
// failures, and empty trees all advance to the next candidate; only
// exhausting the grid is fatal.
func (p *Pipeline) Probe(ctx context.Context) (Combination, *Trees, error) {
	for _, cn := range p.cfg.Locales {
		if err := ctx.Err(); err != nil {
			return Combination{}, nil, err
		}

		if err := p.api.BootSession(ctx, cn); err != nil {
			p.metrics.ProbeAttempts.WithLabelValues("boot_failed").Inc()
			p.logger.Warn("session bootstrap failed", "cn", cn, "error", err)
			continue
		}

		for _, db := range p.cfg.Databases {
			p.logger.Info("probing combination", "cn", cn, "db", db)
			trees, err := p.fetchTrees(ctx, db, cn)
			if err != nil {
				p.metrics.ProbeAttempts.WithLabelValues("rejected").Inc()
				p.logger.Warn("combination rejected", "cn", cn, "db", db, "error", err)
				continue
			}

			p.metrics.ProbeAttempts.WithLabelValues("success").Inc()
			p.ready.Store(true)
			p.logger.Info("combination accepted", "cn", cn, "db", db,
				"indicator_nodes", len(trees.Indicators), "region_nodes", len(trees.Regions))
			return Combination{CN: cn, DB: db}, trees, nil
		}
	}
	return Combination{}, nil, errors.New(
		"no locale/database combination yielded catalog trees; adjust the candidate lists and rerun")
}

func (p *Pipeline) fetchTrees(ctx context.Context, db, cn string) (*Trees, error) {
	indicators, err := p.api.FetchTree(ctx, db, "zb", cn)
	if err != nil {
		return nil, err
	}
	regions, err := p.api.FetchTree(ctx, db, "reg", cn)
	if err != nil {
		return nil, err
	}

	p.metrics.TreeNodes.WithLabelValues("zb").Add(float64(len(indicators)))
	p.metrics.TreeNodes.WithLabelValues("reg").Add(float64(len(regions)))
	return &Trees{Indicators: indicators, Regions: regions}, nil
}

// RunTrees probes and writes only the two catalog CSVs, then reports
// search-pattern hits. Used to discover series codes before a panel run.
func (p *Pipeline) RunTrees(ctx context.Context) error {
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	combo, trees, err := p.Probe(ctx)
	if err != nil {
		return err
	}
	if err := p.writeTrees(combo, trees); err != nil {
		return err
	}
	p.logSearchHits(trees.Indicators)
	return nil
}

// Run executes the full download: probe, catalog artifacts, one series fetch
// per configured indicator, panel assembly, panel artifacts, and the optional
// broker publish.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.RunInProgress.Set(1)
	defer p.metrics.RunInProgress.Set(0)

	combo, trees, err := p.Probe(ctx)
	if err != nil {
		return err
	}
	if err := p.writeTrees(combo, trees); err != nil {
		return err
	}
	p.logSearchHits(trees.Indicators)

	if len(p.cfg.Indicators) == 0 {
		return errors.New(
			"no indicators configured; inspect the indicator tree CSV for series codes and set indicators in the config")
	}

	series, names, err := p.downloadSeries(ctx, combo)
	if err != nil {
		return err
	}

	panel := domain.AssemblePanel(series)
	if len(names) == 0 {
		// Query metadata carried no region axis; the region catalog has the
		// same code -> name mapping.
		names = domain.TreeNames(trees.Regions)
	}
	panel.AttachNames(names)
	p.metrics.PanelRows.Set(float64(panel.Len()))
	p.logger.Info("panel assembled", "rows", panel.Len(), "indicators", len(panel.Columns))

	if _, err := p.sink.WriteRegionNames(names); err != nil {
		return err
	}
	if _, err := p.sink.WritePanel(panel); err != nil {
		return err
	}

	if p.publisher != nil {
		if err := p.publisher.PublishPanel(ctx, panel); err != nil {
			return err
		}
	}
	return nil
}

// downloadSeries fetches every configured indicator under the chosen
// combination. Unlike probing, a failure here is fatal: the combination is
// already known to work, so a broken series points at a wrong code.
func (p *Pipeline) downloadSeries(ctx context.Context, combo Combination) ([]domain.Series, map[string]string, error) {
	series := make([]domain.Series, 0, len(p.cfg.Indicators))
	names := make(map[string]string)

	for _, ind := range p.cfg.Indicators {
		p.logger.Info("downloading series", "label", ind.Label, "zb", ind.Code)
		start := time.Now()
		result, err := p.api.FetchSeries(ctx, combo.DB, ind.Code, combo.CN)
		p.metrics.SeriesDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.SeriesFetches.WithLabelValues("error").Inc()
			return nil, nil, fmt.Errorf("series %s (zb=%s): %w", ind.Label, ind.Code, err)
		}

		p.metrics.SeriesFetches.WithLabelValues("success").Inc()
		p.metrics.RowsDecoded.Add(float64(len(result.Observations)))
		p.metrics.RowsDropped.Add(float64(result.Dropped))

		series = append(series, domain.Series{
			Label:        ind.Label,
			Code:         ind.Code,
			Observations: result.Observations,
		})
		for code, name := range result.RegionNames {
			names[code] = name
		}
	}
	return series, names, nil
}

func (p *Pipeline) writeTrees(combo Combination, trees *Trees) error {
	if _, err := p.sink.WriteTree(combo.DB, "zb", trees.Indicators); err != nil {
		return err
	}
	if _, err := p.sink.WriteTree(combo.DB, "reg", trees.Regions); err != nil {
		return err
	}
	return nil
}

// logSearchHits reports indicator nodes matching the configured name
// patterns, so the exact zb codes can be copied into the config.
func (p *Pipeline) logSearchHits(indicators []domain.TreeNode) {
	for _, pattern := range p.cfg.SearchPatterns {
		hits, err := domain.SearchTree(indicators, pattern)
		if err != nil {
			p.logger.Warn("bad search pattern", "pattern", pattern, "error", err)
			continue
		}
		for _, hit := range hits {
			p.logger.Info("pattern hit", "pattern", pattern,
				"id", hit.ID, "name", hit.Name, "pid", hit.PID, "is_parent", hit.IsParent)
		}
		if len(hits) == 0 {
			p.logger.Info("pattern had no hits", "pattern", pattern)
		}
	}
}
