package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/scrape"
)

// --- Scraper Mock ---

type mockScraper struct {
	mock.Mock
	name string
}

func (m *mockScraper) Name() string { return m.name }

func (m *mockScraper) ScrapeAll(ctx context.Context, params scrape.SearchParams) ([]*model.Listing, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Listing), args.Error(1)
}

// --- Extractor Mock ---

type mockExtractor struct {
	mock.Mock
	name string
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockExtractor) Extract(ctx context.Context, html string, existing *model.Listing) (*model.Listing, error) {
	args := m.Called(ctx, html, existing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

// --- Enricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, l *model.Listing) error {
	return m.Called(ctx, l).Error(0)
}

type enricherFunc func(ctx context.Context, l *model.Listing) error

func (f enricherFunc) Enrich(ctx context.Context, l *model.Listing) error { return f(ctx, l) }

// --- Exporter Mock ---

type mockExporter struct {
	mock.Mock
	name string
}

func (m *mockExporter) Name() string { return m.name }

func (m *mockExporter) Export(ctx context.Context, listings []*model.Listing, dir string) ([]string, error) {
	args := m.Called(ctx, listings, dir)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Upsert(ctx context.Context, l *model.Listing) (int64, bool, error) {
	args := m.Called(ctx, l)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *mockStore) BulkUpsert(ctx context.Context, listings []*model.Listing) (int, int, error) {
	args := m.Called(ctx, listings)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStore) Query(ctx context.Context, filter model.ListingFilter) ([]model.StoredListing, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredListing), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, listingURL string) (*model.StoredListing, error) {
	args := m.Called(ctx, listingURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StoredListing), args.Error(1)
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) SourceSummary(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, listingURL string) (bool, error) {
	args := m.Called(ctx, listingURL)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Checkpoint recorder ---

// recordingCheckpoints keeps every saved checkpoint as a deep copy.
type recordingCheckpoints struct {
	mu      sync.Mutex
	saved   []*model.Checkpoint
	current *model.Checkpoint
	clears  int
	saveErr error
}

func (r *recordingCheckpoints) Save(cp *model.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	c := cloneCheckpoint(cp)
	r.saved = append(r.saved, c)
	r.current = c
	return nil
}

func (r *recordingCheckpoints) Load() (*model.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, nil
	}
	return cloneCheckpoint(r.current), nil
}

func (r *recordingCheckpoints) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
	r.current = nil
	return nil
}

func (r *recordingCheckpoints) Exists() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func (r *recordingCheckpoints) stages() []model.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Stage, 0, len(r.saved))
	for _, cp := range r.saved {
		out = append(out, cp.Stage)
	}
	return out
}

func cloneCheckpoint(cp *model.Checkpoint) *model.Checkpoint {
	c := *cp
	c.Listings = make([]*model.Listing, len(cp.Listings))
	for i, l := range cp.Listings {
		c.Listings[i] = l.Clone()
	}
	return &c
}
