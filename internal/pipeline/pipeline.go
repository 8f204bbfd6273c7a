// Package pipeline drives listings through the status state machine. Each
// stage reads one input status, applies its collaborator, and writes the
// outcome through a compare-and-set transition, so every stage can be
// re-run safely after a crash.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/filter"
	"github.com/PollyDrive/estate/internal/llm"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/parser"
)

// Store is the persistence surface the stages need. Satisfied by both the
// Postgres repositories and the in-memory store.
type Store interface {
	SaveListing(ctx context.Context, raw *models.RawListing) (bool, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Listing, error)
	SaveExtraction(ctx context.Context, l *models.Listing) error
	Transition(ctx context.Context, externalID string, from, to models.Status, reason, llmModel *string) error
	MarkDuplicate(ctx context.Context, externalID, canonicalID string) error
	Archive(ctx context.Context, externalID string) error
	UpsertResult(ctx context.Context, res *models.ListingProfileResult) error
}

// Classifier is the semantic decision maker for the classify stage.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (llm.Decision, error)
}

// Counts summarizes one stage run per outcome.
type Counts struct {
	Processed  int
	Passed     int
	Rejected   int
	Duplicates int
	Deferred   int
	Archived   int
	Errors     int
}

type Pipeline struct {
	store      Store
	parser     *parser.Parser
	rules      *filter.Engine
	classifier Classifier
	profiles   []models.ChatProfile
	cfg        *config.Config
	logger     *zap.Logger
}

// New wires a pipeline. classifier may be nil when the classify stage will
// not run.
func New(store Store, cfg *config.Config, profiles []models.ChatProfile, classifier Classifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		parser:     parser.New(cfg.Filters.Locations),
		rules:      filter.New(cfg, logger),
		classifier: classifier,
		profiles:   profiles,
		cfg:        cfg,
		logger:     logger,
	}
}
