package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-cli/internal/model"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "out", DefaultFileName))
}

func sampleListings(n int) []*model.Listing {
	out := make([]*model.Listing, n)
	for i := range out {
		out[i] = &model.Listing{
			SourceSite: "pararius",
			ListingURL: "https://a/" + string(rune('a'+i)),
			PriceEUR:   model.Ptr(1000.0 + float64(i)),
		}
	}
	return out
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := newTestStore(t)
	fs.nowFunc = func() time.Time { return time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) }

	cfg := model.RunConfig{City: "amsterdam", MinPrice: 1000, MaxPrice: 2000, Sites: []string{"pararius"}}
	listings := sampleListings(10)
	require.NoError(t, fs.Save(&model.Checkpoint{
		RunID:    "run-1",
		Stage:    model.StageEnrichment,
		Cursor:   7,
		Listings: listings,
		Config:   cfg,
	}))
	assert.True(t, fs.Exists())

	got, err := fs.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StageEnrichment, got.Stage)
	assert.Equal(t, 7, got.Cursor)
	assert.Equal(t, cfg, got.Config)
	assert.Equal(t, "run-1", got.RunID)
	require.Len(t, got.Listings, 10)
	for i := range listings {
		assert.Equal(t, listings[i].ListingURL, got.Listings[i].ListingURL)
		assert.Equal(t, *listings[i].PriceEUR, *got.Listings[i].PriceEUR)
	}
	assert.True(t, got.SavedAt.Equal(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)))
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	fs := newTestStore(t)

	require.NoError(t, fs.Save(&model.Checkpoint{Stage: model.StageExtraction, Listings: sampleListings(3)}))
	require.NoError(t, fs.Save(&model.Checkpoint{Stage: model.StageFiltering, Listings: sampleListings(2)}))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, model.StageFiltering, got.Stage)
	assert.Len(t, got.Listings, 2)

	entries, err := os.ReadDir(filepath.Dir(fs.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs := newTestStore(t)

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, fs.Exists())
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs.Path()), 0o755))
	require.NoError(t, os.WriteFile(fs.Path(), []byte("{not json"), 0o644))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_LoadUnknownStage(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs.Path()), 0o755))
	require.NoError(t, os.WriteFile(fs.Path(), []byte(`{"stage":"geocoding","listings":[]}`), 0o644))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_LoadClampsCursor(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs.Path()), 0o755))
	require.NoError(t, os.WriteFile(fs.Path(),
		[]byte(`{"stage":"enrichment","geocoding_index":9,"listings":[{"listing_url":"https://a/1","source_site":"x"}]}`), 0o644))

	got, err := fs.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Cursor)
}

func TestFileStore_SaveRejectsTerminalStage(t *testing.T) {
	fs := newTestStore(t)

	err := fs.Save(&model.Checkpoint{Stage: model.StagePersisted})
	require.Error(t, err)
	assert.False(t, fs.Exists())

	assert.Error(t, fs.Save(nil))
}

func TestFileStore_Clear(t *testing.T) {
	fs := newTestStore(t)
	require.NoError(t, fs.Save(&model.Checkpoint{Stage: model.StageExtraction}))

	require.NoError(t, fs.Clear())
	assert.False(t, fs.Exists())

	// Clearing twice is fine.
	require.NoError(t, fs.Clear())
}
