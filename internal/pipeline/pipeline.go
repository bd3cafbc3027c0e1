// Package pipeline drives a scrape run through its stages: scraping,
// extraction, filtering, enrichment and persistence. The working set is
// checkpointed between stages, and periodically during enrichment, so an
// interrupted run can resume where it stopped.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/checkpoint"
	"github.com/sells-group/rent-cli/internal/enrich"
	"github.com/sells-group/rent-cli/internal/export"
	"github.com/sells-group/rent-cli/internal/extract"
	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/scrape"
	"github.com/sells-group/rent-cli/internal/store"
)

// Options tunes the stage runner.
type Options struct {
	// CheckpointEvery is the number of enrichment completions between
	// intra-stage checkpoints.
	CheckpointEvery   int
	EnrichWorkers     int
	ScrapeConcurrency int
	Now               func() time.Time
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Scrapers []scrape.Scraper
	// Extractor is the LLM extractor; nil or unavailable skips it.
	Extractor extract.Extractor
	// Fallback always runs after Extractor to fill what is still missing.
	Fallback    extract.Extractor
	Enricher    enrich.Enricher
	Exporters   []export.Exporter
	Checkpoints checkpoint.Store
	OpenStore   store.Opener
}

// Counters tallies per-stage outcomes.
type Counters struct {
	Scraped          int `json:"scraped"`
	SiteFailures     int `json:"site_failures"`
	Extracted        int `json:"extracted"`
	ExtractFailures  int `json:"extract_failures"`
	FilteredPrice    int `json:"filtered_price"`
	FilteredRooms    int `json:"filtered_rooms"`
	FilteredSurface  int `json:"filtered_surface"`
	FilteredMinRooms int `json:"filtered_min_rooms"`
	Enriched         int `json:"enriched"`
	EnrichFailures   int `json:"enrich_failures"`
	New              int `json:"new"`
	Updated          int `json:"updated"`
	ExportFailures   int `json:"export_failures"`
}

// Result is the outcome of a run.
type Result struct {
	RunID string
	// ResumedFrom names the stage a resumed run started at; empty for a
	// fresh run.
	ResumedFrom model.Stage
	Listings    []*model.Listing
	Counters    Counters
	Exported    []string
}

// Pipeline runs the stages in strict forward order.
type Pipeline struct {
	opts Options
	deps Deps
}

// New creates a Pipeline.
func New(opts Options, deps Deps) *Pipeline {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 50
	}
	if opts.EnrichWorkers <= 0 {
		opts.EnrichWorkers = 1
	}
	if opts.ScrapeConcurrency <= 0 {
		opts.ScrapeConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{opts: opts, deps: deps}
}

// run is the state of one invocation.
type run struct {
	id       string
	cfg      model.RunConfig
	stage    model.Stage
	cursor   int
	listings []*model.Listing
	result   *Result
	log      *zap.Logger
}

// Run starts a fresh run from scraping.
func (p *Pipeline) Run(ctx context.Context, cfg model.RunConfig) (*Result, error) {
	r := p.newRun(uuid.NewString(), cfg)
	r.log.Info("pipeline: starting run",
		zap.String("city", cfg.City),
		zap.Strings("sites", cfg.Sites),
		zap.Float64("min_price", cfg.MinPrice),
		zap.Float64("max_price", cfg.MaxPrice),
	)
	return p.execute(ctx, r)
}

// Resume continues the run saved in the checkpoint with its stage, records,
// cursor and configuration. The saved configuration wins over cfg. Without
// a usable checkpoint it logs a warning and starts a fresh run with cfg.
func (p *Pipeline) Resume(ctx context.Context, cfg model.RunConfig) (*Result, error) {
	var cp *model.Checkpoint
	if p.deps.Checkpoints != nil {
		var err error
		cp, err = p.deps.Checkpoints.Load()
		if err != nil {
			zap.L().Warn("pipeline: checkpoint unreadable, starting fresh", zap.Error(err))
			cp = nil
		}
	}
	if cp == nil {
		zap.L().Warn("pipeline: no checkpoint to resume, starting fresh")
		return p.Run(ctx, cfg)
	}

	id := cp.RunID
	if id == "" {
		id = uuid.NewString()
	}
	r := p.newRun(id, cp.Config)
	r.stage = cp.Stage
	r.cursor = cp.Cursor
	r.listings = cp.Listings
	r.result.ResumedFrom = cp.Stage
	r.log.Info("pipeline: resuming run",
		zap.String("stage", string(cp.Stage)),
		zap.Int("cursor", cp.Cursor),
		zap.Int("listings", len(cp.Listings)),
		zap.Time("saved_at", cp.SavedAt),
	)
	return p.execute(ctx, r)
}

func (p *Pipeline) newRun(id string, cfg model.RunConfig) *run {
	return &run{
		id:     id,
		cfg:    cfg,
		stage:  model.StageScraping,
		result: &Result{RunID: id},
		log:    zap.L().With(zap.String("run_id", id)),
	}
}

// execute advances r one stage at a time until it is persisted.
func (p *Pipeline) execute(ctx context.Context, r *run) (*Result, error) {
	for r.stage != model.StagePersisted {
		if err := ctx.Err(); err != nil {
			return r.result, eris.Wrapf(err, "pipeline: cancelled before %s", r.stage)
		}

		start := time.Now()
		from := r.stage
		var err error
		switch r.stage {
		case model.StageScraping:
			err = p.scrapeStage(ctx, r)
		case model.StageExtraction:
			err = p.extractStage(ctx, r)
		case model.StageFiltering:
			p.filterStage(r)
		case model.StageEnrichment:
			err = p.enrichStage(ctx, r)
		default:
			return r.result, eris.Errorf("pipeline: unknown stage %q", r.stage)
		}
		if err != nil {
			return r.result, err
		}
		if from == model.StageScraping && len(r.listings) == 0 {
			r.log.Warn("pipeline: no listings scraped")
			return r.result, nil
		}
		r.log.Info("pipeline: stage complete",
			zap.String("stage", string(from)),
			zap.Int("listings", len(r.listings)),
			zap.Duration("duration", time.Since(start)),
		)
	}

	if err := p.persist(ctx, r); err != nil {
		return r.result, err
	}
	p.exportAll(ctx, r)

	r.result.Listings = r.listings
	r.log.Info("pipeline: run complete",
		zap.Int("listings", len(r.listings)),
		zap.Int("new", r.result.Counters.New),
		zap.Int("updated", r.result.Counters.Updated),
	)
	return r.result, nil
}

// advance moves r to next and checkpoints the whole working set.
func (p *Pipeline) advance(r *run, next model.Stage) {
	r.stage = next
	r.cursor = 0
	p.saveCheckpoint(r)
}

// saveCheckpoint writes the current state. Failures are logged only; a run
// that cannot checkpoint still finishes.
func (p *Pipeline) saveCheckpoint(r *run) {
	if p.deps.Checkpoints == nil || !r.stage.Resumable() {
		return
	}
	cp := &model.Checkpoint{
		RunID:    r.id,
		Stage:    r.stage,
		Cursor:   r.cursor,
		Listings: r.listings,
		Config:   r.cfg,
	}
	if err := p.deps.Checkpoints.Save(cp); err != nil {
		r.log.Warn("pipeline: checkpoint save failed",
			zap.String("stage", string(r.stage)),
			zap.Int("cursor", r.cursor),
			zap.Error(err),
		)
	}
}
