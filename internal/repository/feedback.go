package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type FeedbackRepository interface {
	RecordFeedback(ctx context.Context, messageID, chatID int64, kind string) error
}

type feedbackRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFeedbackRepository(db *sqlx.DB, logger *zap.Logger) FeedbackRepository {
	return &feedbackRepository{db: db, logger: logger}
}

// RecordFeedback counts one reaction of the given kind against a delivered
// message. Repeated reactions bump the counter instead of inserting new rows.
func (r *feedbackRepository) RecordFeedback(ctx context.Context, messageID, chatID int64, kind string) error {
	query := `INSERT INTO feedback (message_id, chat_id, kind, count, first_seen, last_seen)
	          VALUES ($1, $2, $3, 1, now(), now())
	          ON CONFLICT (message_id, chat_id, kind)
	          DO UPDATE SET count = feedback.count + 1, last_seen = now()`
	_, err := r.db.ExecContext(ctx, query, messageID, chatID, kind)
	return err
}
