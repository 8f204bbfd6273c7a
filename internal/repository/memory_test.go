package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PollyDrive/estate/internal/models"
)

func seedListing(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	created, err := s.SaveListing(context.Background(), &models.RawListing{
		ExternalID:  id,
		Source:      models.SourceMarketplace,
		Title:       "Villa",
		Description: "2 bedroom villa in Canggu, 12jt per month",
	})
	require.NoError(t, err)
	require.True(t, created)
}

func TestSaveListingIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedListing(t, s, "l1")

	created, err := s.SaveListing(ctx, &models.RawListing{ExternalID: "l1"})
	require.NoError(t, err)
	assert.False(t, created)

	l, err := s.GetByExternalID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Villa", l.Title)
	assert.Equal(t, models.StatusNew, l.Status)
}

func TestTransitionCompareAndSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedListing(t, s, "l1")

	l, _ := s.GetByExternalID(ctx, "l1")
	require.NoError(t, s.SaveExtraction(ctx, l))

	err := s.Transition(ctx, "l1", models.StatusCollected, models.StatusStructurallyFiltered, nil, nil)
	require.NoError(t, err)

	// Second run sees the listing already moved past "collected".
	err = s.Transition(ctx, "l1", models.StatusCollected, models.StatusStructurallyFiltered, nil, nil)
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestTransitionRejectsUnlistedEdge(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedListing(t, s, "l1")

	err := s.Transition(ctx, "l1", models.StatusNew, models.StatusNotified, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition")
}

func TestSaveExtractionGuardedByStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedListing(t, s, "l1")

	l, _ := s.GetByExternalID(ctx, "l1")
	require.NoError(t, s.SaveExtraction(ctx, l))
	assert.ErrorIs(t, s.SaveExtraction(ctx, l), ErrStatusChanged)
}

func TestUpsertResultNeverTouchesDeliveryState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res := &models.ListingProfileResult{ExternalID: "l1", ChatID: -100, Passed: true, Reason: "PASS"}
	require.NoError(t, s.UpsertResult(ctx, res))
	require.NoError(t, s.MarkSent(ctx, "l1", -100, 555, time.Now()))

	// A later match run must not overwrite a decision that was delivered.
	res2 := &models.ListingProfileResult{ExternalID: "l1", ChatID: -100, Passed: false, Reason: "REJECT_PRICE:x"}
	require.NoError(t, s.UpsertResult(ctx, res2))

	sent, err := s.AlreadySent(ctx, "l1", -100)
	require.NoError(t, err)
	assert.True(t, sent)

	count, err := s.UnsentPassedCount(ctx, "l1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMarkSentOnlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertResult(ctx, &models.ListingProfileResult{ExternalID: "l1", ChatID: -100, Passed: true, Reason: "PASS"}))
	require.NoError(t, s.MarkSent(ctx, "l1", -100, 555, time.Now()))
	assert.ErrorIs(t, s.MarkSent(ctx, "l1", -100, 556, time.Now()), ErrStatusChanged)
}

func TestRecordFeedbackBumpsCounter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.RecordFeedback(ctx, 555, -100, models.FeedbackPositive))
	require.NoError(t, s.RecordFeedback(ctx, 555, -100, models.FeedbackPositive))
	require.NoError(t, s.RecordFeedback(ctx, 555, -100, models.FeedbackNegative))

	assert.Equal(t, 2, s.FeedbackCount(555, -100, models.FeedbackPositive))
	assert.Equal(t, 1, s.FeedbackCount(555, -100, models.FeedbackNegative))
}

func TestRejectionBreakdownCollapsesDetail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedListing(t, s, "l1")
	seedListing(t, s, "l2")

	for _, id := range []string{"l1", "l2"} {
		l, _ := s.GetByExternalID(ctx, id)
		require.NoError(t, s.SaveExtraction(ctx, l))
	}
	reason1 := "REJECT_PRICE:30000000>16000000"
	reason2 := "REJECT_PRICE:45000000>16000000"
	require.NoError(t, s.Transition(ctx, "l1", models.StatusCollected, models.StatusStructurallyRejected, &reason1, nil))
	require.NoError(t, s.Transition(ctx, "l2", models.StatusCollected, models.StatusStructurallyRejected, &reason2, nil))

	rows, err := s.RejectionBreakdown(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "REJECT_PRICE", rows[0].Reason)
	assert.Equal(t, 2, rows[0].Count)
}
