package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type BatchRepository interface {
	StartRun(ctx context.Context, chatID int64) (int64, error)
	FinishRun(ctx context.Context, id int64, sent, blocked, errors int, status string) error
}

type batchRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewBatchRepository(db *sqlx.DB, logger *zap.Logger) BatchRepository {
	return &batchRepository{db: db, logger: logger}
}

func (r *batchRepository) StartRun(ctx context.Context, chatID int64) (int64, error) {
	var id int64
	query := `INSERT INTO batch_runs (chat_id, started_at, status) VALUES ($1, now(), 'running') RETURNING id`
	if err := r.db.GetContext(ctx, &id, query, chatID); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *batchRepository) FinishRun(ctx context.Context, id int64, sent, blocked, errors int, status string) error {
	query := `UPDATE batch_runs SET finished_at = now(), sent = $1, blocked = $2, errors = $3, status = $4
	          WHERE id = $5`
	_, err := r.db.ExecContext(ctx, query, sent, blocked, errors, status, id)
	return err
}
