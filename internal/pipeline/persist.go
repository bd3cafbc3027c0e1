package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// persist writes the final listings to the store and, only once that
// succeeded, clears the checkpoint. The store is opened for this write
// alone and closed before returning.
func (p *Pipeline) persist(ctx context.Context, r *run) error {
	if p.deps.OpenStore == nil {
		return eris.New("pipeline: no store configured")
	}

	now := p.opts.Now().UTC()
	for _, l := range r.listings {
		if l.ScrapedAt.IsZero() {
			l.ScrapedAt = now
		}
	}

	st, err := p.deps.OpenStore(ctx)
	if err != nil {
		return eris.Wrap(err, "pipeline: open store")
	}
	newCount, updatedCount, err := st.BulkUpsert(ctx, r.listings)
	if closeErr := st.Close(); closeErr != nil {
		r.log.Warn("pipeline: store close failed", zap.Error(closeErr))
	}
	if err != nil {
		return eris.Wrap(err, "pipeline: persist listings")
	}

	r.result.Counters.New = newCount
	r.result.Counters.Updated = updatedCount
	r.log.Info("pipeline: listings persisted",
		zap.Int("new", newCount),
		zap.Int("updated", updatedCount),
	)

	if p.deps.Checkpoints != nil {
		if err := p.deps.Checkpoints.Clear(); err != nil {
			r.log.Warn("pipeline: checkpoint clear failed", zap.Error(err))
		}
	}
	return nil
}

// exportAll runs every exporter. Export failures are counted and logged;
// the listings are already stored, so they never fail the run.
func (p *Pipeline) exportAll(ctx context.Context, r *run) {
	for _, e := range p.deps.Exporters {
		paths, err := e.Export(ctx, r.listings, r.cfg.OutputDir)
		if err != nil {
			r.result.Counters.ExportFailures++
			r.log.Error("pipeline: export failed", zap.String("exporter", e.Name()), zap.Error(err))
			continue
		}
		r.result.Exported = append(r.result.Exported, paths...)
	}
}
