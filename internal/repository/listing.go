package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/models"
)

const listingColumns = `id, external_id, source, group_id, title, description, raw_price, raw_location, url,
	bedrooms, price_extracted, price_ambiguous, kitchen, has_ac, has_wifi, has_pool, has_parking,
	utilities, furniture, rental_term, location, phone,
	status, rejection_reason, llm_model, duplicate_of, created_at, updated_at`

type ListingRepository interface {
	SaveListing(ctx context.Context, raw *models.RawListing) (bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Listing, error)
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Listing, error)
	SaveExtraction(ctx context.Context, l *models.Listing) error
	Transition(ctx context.Context, externalID string, from, to models.Status, reason, llmModel *string) error
	MarkDuplicate(ctx context.Context, externalID, canonicalID string) error
	Archive(ctx context.Context, externalID string) error
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	RejectionBreakdown(ctx context.Context) ([]ReasonCount, error)
}

// ReasonCount is one row of the rejection reason breakdown.
type ReasonCount struct {
	Status models.Status `db:"status"`
	Reason string        `db:"rejection_reason"`
	Count  int           `db:"count"`
}

type listingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewListingRepository(db *sqlx.DB, logger *zap.Logger) ListingRepository {
	return &listingRepository{db: db, logger: logger}
}

// SaveListing inserts a raw listing in status "new". Returns false when the
// external id already exists; re-ingesting the same feed is a no-op.
func (r *listingRepository) SaveListing(ctx context.Context, raw *models.RawListing) (bool, error) {
	query := `INSERT INTO listings (external_id, source, group_id, title, description, raw_price, raw_location, url, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (external_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, raw.ExternalID, raw.Source, raw.GroupID,
		raw.Title, raw.Description, raw.RawPrice, raw.RawLocation, raw.URL, models.StatusNew)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *listingRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Listing, error) {
	var l models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE external_id = $1`
	err := r.db.GetContext(ctx, &l, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *listingRepository) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Listing, error) {
	var listings []*models.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE status = $1 ORDER BY created_at ASC`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, err
	}
	return listings, nil
}

// SaveExtraction writes the extracted fields and advances the listing from
// "new" to "collected" in one guarded statement.
func (r *listingRepository) SaveExtraction(ctx context.Context, l *models.Listing) error {
	query := `UPDATE listings SET
	            bedrooms = $1, price_extracted = $2, price_ambiguous = $3, kitchen = $4,
	            has_ac = $5, has_wifi = $6, has_pool = $7, has_parking = $8,
	            utilities = $9, furniture = $10, rental_term = $11, location = $12, phone = $13,
	            status = $14, updated_at = now()
	          WHERE external_id = $15 AND status = $16`
	res, err := r.db.ExecContext(ctx, query,
		l.Bedrooms, l.PriceExtracted, l.PriceAmbiguous, l.Kitchen,
		l.HasAC, l.HasWifi, l.HasPool, l.HasParking,
		l.Utilities, l.Furniture, l.RentalTerm, l.Location, l.Phone,
		models.StatusCollected, l.ExternalID, models.StatusNew)
	if err != nil {
		return err
	}
	return checkOneRow(res)
}

// Transition performs a compare-and-set status change. Rejection statuses
// carry a reason; the classify stage additionally records which model decided.
func (r *listingRepository) Transition(ctx context.Context, externalID string, from, to models.Status, reason, llmModel *string) error {
	if err := models.CheckTransition(from, to); err != nil {
		return err
	}
	query := `UPDATE listings SET status = $1, rejection_reason = COALESCE($2, rejection_reason),
	            llm_model = COALESCE($3, llm_model), updated_at = now()
	          WHERE external_id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, to, reason, llmModel, externalID, from)
	if err != nil {
		return err
	}
	return checkOneRow(res)
}

func (r *listingRepository) MarkDuplicate(ctx context.Context, externalID, canonicalID string) error {
	query := `UPDATE listings SET status = $1, duplicate_of = $2, updated_at = now()
	          WHERE external_id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query,
		models.StatusDuplicateOfCanonical, canonicalID, externalID, models.StatusSemanticallyFiltered)
	if err != nil {
		return err
	}
	return checkOneRow(res)
}

// Archive moves a terminally rejected listing out of the hot table so the
// stage queries stay small. The copy and delete run in one transaction.
func (r *listingRepository) Archive(ctx context.Context, externalID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO listing_non_relevant SELECT * FROM listings WHERE external_id = $1
		 ON CONFLICT (external_id) DO NOTHING`, externalID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE external_id = $1`, externalID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *listingRepository) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT status, COUNT(*) AS count FROM listings GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var status models.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RejectionBreakdown aggregates rejection reasons per failure status. Reasons
// with a detail suffix collapse onto their prefix, so REJECT_PRICE:x>y counts
// as REJECT_PRICE.
func (r *listingRepository) RejectionBreakdown(ctx context.Context) ([]ReasonCount, error) {
	var out []ReasonCount
	query := `SELECT status, split_part(rejection_reason, ':', 1) AS rejection_reason, COUNT(*) AS count
	          FROM listings
	          WHERE rejection_reason IS NOT NULL
	          GROUP BY status, split_part(rejection_reason, ':', 1)
	          ORDER BY status, count DESC`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, err
	}
	return out, nil
}

func checkOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}
