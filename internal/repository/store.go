package repository

import (
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Store bundles the per-entity repositories behind one value so callers can
// pass a single dependency around.
type Store struct {
	ListingRepository
	ResultRepository
	FeedbackRepository
	BatchRepository
}

func NewStore(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{
		ListingRepository:  NewListingRepository(db, logger),
		ResultRepository:   NewResultRepository(db, logger),
		FeedbackRepository: NewFeedbackRepository(db, logger),
		BatchRepository:    NewBatchRepository(db, logger),
	}
}
