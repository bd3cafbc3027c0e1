// Package extract fills listing fields from archived listing pages. The
// regex extractor is deterministic and always available; the LLM extractor
// reads the page with an Anthropic model when an API key is configured.
package extract

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
)

// Extractor derives listing fields from a page's HTML. Implementations
// return existing with the fields they found filled in; fields existing
// already carries are left alone.
type Extractor interface {
	Name() string
	Available(ctx context.Context) bool
	Extract(ctx context.Context, html string, existing *model.Listing) (*model.Listing, error)
}

// ReadRawPage loads an archived page for extraction.
func ReadRawPage(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "extract: read raw page %s", path)
	}
	return string(b), nil
}

// fillFrom returns a copy of existing with the fields of found it lacks.
func fillFrom(existing, found *model.Listing) *model.Listing {
	out := existing.Clone()
	if out == nil {
		out = &model.Listing{}
	}
	model.FillMissing(out, found)
	return out
}
