package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/models"
)

// PendingNotification pairs an unsent passing decision with its listing.
type PendingNotification struct {
	Listing models.Listing
	Result  models.ListingProfileResult
}

type ResultRepository interface {
	UpsertResult(ctx context.Context, res *models.ListingProfileResult) error
	ListUnsent(ctx context.Context, chatID int64, limit int) ([]*PendingNotification, error)
	MarkSent(ctx context.Context, externalID string, chatID int64, messageID int64, sentAt time.Time) error
	UnsentPassedCount(ctx context.Context, externalID string) (int, error)
	AlreadySent(ctx context.Context, externalID string, chatID int64) (bool, error)
	DeliveryCounts(ctx context.Context) ([]DeliveryCount, error)
}

// DeliveryCount is the per-chat delivery tally for the stats command.
type DeliveryCount struct {
	ChatID  int64 `db:"chat_id"`
	Passed  int   `db:"passed"`
	Sent    int   `db:"sent"`
	Pending int   `db:"pending"`
}

type resultRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewResultRepository(db *sqlx.DB, logger *zap.Logger) ResultRepository {
	return &resultRepository{db: db, logger: logger}
}

// UpsertResult records one (listing, profile) decision. Re-running the match
// stage refreshes the decision but never touches delivery state.
func (r *resultRepository) UpsertResult(ctx context.Context, res *models.ListingProfileResult) error {
	query := `INSERT INTO listing_profiles (external_id, chat_id, passed, reason)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (external_id, chat_id)
	          DO UPDATE SET passed = EXCLUDED.passed, reason = EXCLUDED.reason
	          WHERE listing_profiles.message_id IS NULL`
	_, err := r.db.ExecContext(ctx, query, res.ExternalID, res.ChatID, res.Passed, res.Reason)
	return err
}

// ListUnsent returns passing decisions for one chat that have no delivery
// record yet, oldest listing first.
func (r *resultRepository) ListUnsent(ctx context.Context, chatID int64, limit int) ([]*PendingNotification, error) {
	query := `SELECT l.external_id, lp.chat_id, lp.passed, lp.reason,
	            l.source, l.title, l.description, l.raw_price, l.raw_location, l.url,
	            l.bedrooms, l.price_extracted, l.price_ambiguous, l.kitchen,
	            l.has_ac, l.has_wifi, l.has_pool, l.has_parking,
	            l.utilities, l.furniture, l.rental_term, l.location, l.phone,
	            l.status, l.created_at
	          FROM listing_profiles lp
	          JOIN listings l ON l.external_id = lp.external_id
	          WHERE lp.chat_id = $1 AND lp.passed AND lp.message_id IS NULL
	            AND l.status = $2
	          ORDER BY l.created_at ASC
	          LIMIT $3`
	rows, err := r.db.QueryxContext(ctx, query, chatID, models.StatusMatchedToProfile, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PendingNotification
	for rows.Next() {
		p := &PendingNotification{}
		err := rows.Scan(&p.Listing.ExternalID, &p.Result.ChatID, &p.Result.Passed, &p.Result.Reason,
			&p.Listing.Source, &p.Listing.Title, &p.Listing.Description, &p.Listing.RawPrice,
			&p.Listing.RawLocation, &p.Listing.URL,
			&p.Listing.Bedrooms, &p.Listing.PriceExtracted, &p.Listing.PriceAmbiguous, &p.Listing.Kitchen,
			&p.Listing.HasAC, &p.Listing.HasWifi, &p.Listing.HasPool, &p.Listing.HasParking,
			&p.Listing.Utilities, &p.Listing.Furniture, &p.Listing.RentalTerm, &p.Listing.Location,
			&p.Listing.Phone, &p.Listing.Status, &p.Listing.CreatedAt)
		if err != nil {
			return nil, err
		}
		p.Result.ExternalID = p.Listing.ExternalID
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *resultRepository) MarkSent(ctx context.Context, externalID string, chatID int64, messageID int64, sentAt time.Time) error {
	query := `UPDATE listing_profiles SET message_id = $1, sent_at = $2
	          WHERE external_id = $3 AND chat_id = $4 AND message_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, messageID, sentAt, externalID, chatID)
	if err != nil {
		return err
	}
	return checkOneRow(res)
}

func (r *resultRepository) UnsentPassedCount(ctx context.Context, externalID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM listing_profiles
	          WHERE external_id = $1 AND passed AND message_id IS NULL`
	if err := r.db.GetContext(ctx, &count, query, externalID); err != nil {
		return 0, err
	}
	return count, nil
}

// DeliveryCounts aggregates decisions and deliveries per chat.
func (r *resultRepository) DeliveryCounts(ctx context.Context) ([]DeliveryCount, error) {
	var out []DeliveryCount
	query := `SELECT chat_id,
	            COUNT(*) FILTER (WHERE passed) AS passed,
	            COUNT(*) FILTER (WHERE message_id IS NOT NULL) AS sent,
	            COUNT(*) FILTER (WHERE passed AND message_id IS NULL) AS pending
	          FROM listing_profiles
	          GROUP BY chat_id
	          ORDER BY chat_id`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

// AlreadySent reports whether a delivery record exists for the pair. Used as
// the final guard right before a send.
func (r *resultRepository) AlreadySent(ctx context.Context, externalID string, chatID int64) (bool, error) {
	var sent bool
	query := `SELECT EXISTS (SELECT 1 FROM listing_profiles
	          WHERE external_id = $1 AND chat_id = $2 AND message_id IS NOT NULL)`
	if err := r.db.GetContext(ctx, &sent, query, externalID, chatID); err != nil {
		return false, err
	}
	return sent, nil
}
