package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rent-cli/internal/model"
)

// enrichStage enriches listings from the cursor onwards with a bounded
// worker pool. The cursor advances as a watermark: it only moves past a
// listing once every listing before it has finished, so a resumed run never
// skips unfinished work. A checkpoint is written every CheckpointEvery
// completions and again when the run is cancelled.
func (p *Pipeline) enrichStage(ctx context.Context, r *run) error {
	total := len(r.listings)
	start := min(max(r.cursor, 0), total)

	if p.deps.Enricher == nil {
		r.log.Info("pipeline: no enricher configured")
		r.stage = model.StagePersisted
		return nil
	}
	if start > 0 {
		r.log.Info("pipeline: skipping enriched listings", zap.Int("cursor", start), zap.Int("total", total))
	}

	var (
		mu        sync.Mutex
		done      = make([]bool, total)
		watermark = start
		completed = 0
	)
	c := &r.result.Counters

	finish := func(i int, enriched *model.Listing, err error) {
		mu.Lock()
		defer mu.Unlock()

		r.listings[i] = enriched
		if err != nil {
			c.EnrichFailures++
			r.log.Warn("pipeline: enrichment failed", zap.String("url", enriched.ListingURL), zap.Error(err))
		} else {
			c.Enriched++
		}
		done[i] = true
		for watermark < total && done[watermark] {
			watermark++
		}
		completed++
		if completed%p.opts.CheckpointEvery == 0 {
			r.cursor = watermark
			p.saveCheckpoint(r)
			r.log.Info("pipeline: enrichment progress",
				zap.Int("cursor", watermark),
				zap.Int("total", total),
			)
		}
	}

	jobs := make(chan int)
	g := new(errgroup.Group)
	for range p.opts.EnrichWorkers {
		g.Go(func() error {
			for i := range jobs {
				// Workers enrich a private copy so checkpoints never observe
				// a listing mid-update.
				l := r.listings[i].Clone()
				err := p.deps.Enricher.Enrich(ctx, l)
				if ctx.Err() != nil {
					continue
				}
				finish(i, l, err)
			}
			return nil
		})
	}

dispatch:
	for i := start; i < total; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		r.cursor = watermark
		p.saveCheckpoint(r)
		return eris.Wrapf(err, "pipeline: enrichment stopped at %d/%d", watermark, total)
	}

	r.log.Info("pipeline: enrichment finished",
		zap.Int("enriched", c.Enriched),
		zap.Int("failed", c.EnrichFailures),
	)
	if start < total {
		r.cursor = total
		p.saveCheckpoint(r)
	}
	r.stage = model.StagePersisted
	return nil
}
