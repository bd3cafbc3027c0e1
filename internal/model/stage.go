package model

import (
	"time"
)

// Stage names a pipeline stage. Stages run in strict forward order.
type Stage string

const (
	StageScraping   Stage = "scraping"
	StageExtraction Stage = "extraction"
	StageFiltering  Stage = "filtering"
	StageEnrichment Stage = "enrichment"
	StagePersisted  Stage = "persisted"
)

var stageOrder = map[Stage]int{
	StageScraping:   0,
	StageExtraction: 1,
	StageFiltering:  2,
	StageEnrichment: 3,
	StagePersisted:  4,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before reports whether s runs strictly before other.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// Resumable reports whether a checkpoint may name s. The terminal stage is
// never written to disk.
func (s Stage) Resumable() bool {
	return s.Valid() && s != StagePersisted
}

// RunConfig captures the invocation parameters a resumed run must reuse.
type RunConfig struct {
	City               string   `json:"city"`
	Sites              []string `json:"sites,omitempty"`
	MinPrice           float64  `json:"min_price"`
	MaxPrice           float64  `json:"max_price"`
	MaxListingsPerSite int      `json:"max_listings_per_site,omitempty"`
	TestMode           bool     `json:"test_mode,omitempty"`
	SkipLLM            bool     `json:"skip_llm,omitempty"`
	ApartmentsOnly     bool     `json:"apartments_only,omitempty"`
	MinSurface         *float64 `json:"min_surface,omitempty"`
	MinRooms           *int     `json:"min_rooms,omitempty"`
	OutputDir          string   `json:"output_dir,omitempty"`
}

// Checkpoint is the persisted snapshot of a run in progress. Stage names the
// stage that has not begun; for StageEnrichment, Cursor counts records at
// the head of Listings that are already enriched.
type Checkpoint struct {
	RunID    string     `json:"run_id,omitempty"`
	Stage    Stage      `json:"stage"`
	Cursor   int        `json:"geocoding_index"`
	Listings []*Listing `json:"listings"`
	Config   RunConfig  `json:"config"`
	SavedAt  time.Time  `json:"saved_at"`
}

// ListingFilter selects stored listings. Every numeric bound lets rows with
// an unknown value through.
type ListingFilter struct {
	MinPrice             *float64
	MaxPrice             *float64
	MinSurface           *float64
	MinRooms             *int
	MinNeighborhoodScore *float64
	SourceSite           string
}
