package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/extract"
	"github.com/sells-group/rent-cli/internal/model"
)

// extractStage fills missing fields from each listing's archived HTML.
// The LLM extractor runs first when enabled and reachable; the fallback
// extractor always runs afterwards. Listings without an archived page are
// left as scraped.
func (p *Pipeline) extractStage(ctx context.Context, r *run) error {
	useLLM := false
	if r.cfg.SkipLLM {
		r.log.Info("pipeline: llm extraction disabled")
	} else if p.deps.Extractor != nil {
		useLLM = p.deps.Extractor.Available(ctx)
		if !useLLM {
			r.log.Warn("pipeline: llm extractor unavailable, using fallback only",
				zap.String("extractor", p.deps.Extractor.Name()))
		}
	}

	skipped := 0
	for _, l := range r.listings {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pipeline: extraction")
		}
		if l.RawPagePath == nil || *l.RawPagePath == "" {
			skipped++
			continue
		}
		if p.extractOne(ctx, r, l, useLLM) {
			r.result.Counters.Extracted++
		} else {
			r.result.Counters.ExtractFailures++
		}
	}

	r.log.Info("pipeline: extraction finished",
		zap.Int("extracted", r.result.Counters.Extracted),
		zap.Int("failed", r.result.Counters.ExtractFailures),
		zap.Int("skipped", skipped),
		zap.Bool("llm", useLLM),
	)
	p.advance(r, model.StageFiltering)
	return nil
}

// extractOne merges extractor results into l and reports whether any
// extractor succeeded.
func (p *Pipeline) extractOne(ctx context.Context, r *run, l *model.Listing, useLLM bool) bool {
	log := r.log.With(zap.String("url", l.ListingURL))

	html, err := extract.ReadRawPage(*l.RawPagePath)
	if err != nil {
		log.Warn("pipeline: raw page unreadable", zap.Error(err))
		return false
	}

	ok := false
	if useLLM {
		found, err := p.deps.Extractor.Extract(ctx, html, l)
		if err != nil {
			log.Warn("pipeline: llm extraction failed", zap.Error(err))
		} else {
			model.Merge(l, found)
			ok = true
		}
	}
	if p.deps.Fallback != nil {
		found, err := p.deps.Fallback.Extract(ctx, html, l)
		if err != nil {
			log.Warn("pipeline: fallback extraction failed", zap.Error(err))
		} else {
			model.Merge(l, found)
			ok = true
		}
	}
	if ok {
		l.NormalizePrice()
	}
	return ok
}
