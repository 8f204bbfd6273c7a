package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/repository"
)

type fakeSender struct {
	err    error
	nextID int64
	sent   []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return f.nextID, nil
}

func testTelegramConfig() config.TelegramConfig {
	return config.TelegramConfig{
		BatchSize:  10,
		SendDelay:  0,
		QuietStart: 22,
		QuietEnd:   7,
		UTCOffset:  8,
	}
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func seedMatched(t *testing.T, store *repository.MemoryStore, id string, chatID int64) {
	t.Helper()
	ctx := context.Background()
	created, err := store.SaveListing(ctx, &models.RawListing{
		ExternalID:  id,
		Source:      models.SourceMarketplace,
		Title:       "Villa in Canggu",
		Description: "2 bedroom villa, 12jt per month",
		URL:         "https://example.com/" + id,
	})
	require.NoError(t, err)
	require.True(t, created)

	l, err := store.GetByExternalID(ctx, id)
	require.NoError(t, err)
	l.Bedrooms = intPtr(2)
	l.PriceExtracted = floatPtr(12_000_000)
	require.NoError(t, store.SaveExtraction(ctx, l))

	steps := [][2]models.Status{
		{models.StatusCollected, models.StatusStructurallyFiltered},
		{models.StatusStructurallyFiltered, models.StatusSemanticallyFiltered},
		{models.StatusSemanticallyFiltered, models.StatusDeduplicated},
		{models.StatusDeduplicated, models.StatusMatchedToProfile},
	}
	for _, s := range steps {
		require.NoError(t, store.Transition(ctx, id, s[0], s[1], nil, nil))
	}
	require.NoError(t, store.UpsertResult(ctx, &models.ListingProfileResult{
		ExternalID: id, ChatID: chatID, Passed: true, Reason: "PASS",
	}))
}

func testProfile(chatID int64) models.ChatProfile {
	return models.ChatProfile{
		ChatID: chatID, Name: "canggu", BedroomsMin: 1, PriceMax: 16_000_000, Enabled: true,
	}
}

func daytime() time.Time {
	// 12:00 in UTC+8.
	return time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC)
}

func newTestGate(store *repository.MemoryStore, sender Sender, profiles ...models.ChatProfile) *Gate {
	g := New(store, sender, profiles, testTelegramConfig(), zap.NewNop())
	g.now = daytime
	return g
}

func TestRunSendsAndRecords(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)
	g := newTestGate(store, sender, testProfile(-100))

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100), sender.sent[0].chatID)
	assert.Contains(t, sender.sent[0].text, "Villa in Canggu")
	assert.Contains(t, sender.sent[0].text, "12.000.000 IDR/month")
	assert.Contains(t, sender.sent[0].text, "https://example.com/l1")

	ctx := context.Background()
	sent, err := store.AlreadySent(ctx, "l1", -100)
	require.NoError(t, err)
	assert.True(t, sent)

	l, err := store.GetByExternalID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotified, l.Status)
}

func TestRunIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)
	g := newTestGate(store, sender, testProfile(-100))

	_, err := g.Run(context.Background())
	require.NoError(t, err)
	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.Sent)
	assert.Len(t, sender.sent, 1)
}

func TestRunQuietHours(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)
	g := newTestGate(store, sender, testProfile(-100))
	// 23:00 in UTC+8.
	g.now = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Skipped)
	assert.Empty(t, sender.sent)
}

func TestRunQuietHoursDisabled(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)
	cfg := testTelegramConfig()
	cfg.QuietDisabled = true
	g := New(store, sender, []models.ChatProfile{testProfile(-100)}, cfg, zap.NewNop())
	// 23:00 in UTC+8, inside the window the toggle switches off.
	g.now = func() time.Time { return time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC) }

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Skipped)
	assert.Equal(t, 1, s.Sent)
}

func TestFinalGuardBlocksOnProfileChange(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)

	// Profile tightened after the match run.
	prof := testProfile(-100)
	prof.PriceMax = 10_000_000
	g := newTestGate(store, sender, prof)

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Blocked)
	assert.Zero(t, s.Sent)
	assert.Empty(t, sender.sent)

	// The guard rewrote the decision row, so the next run has nothing to do.
	count, err := store.UnsentPassedCount(context.Background(), "l1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFinalGuardBlocksOnStopLocation(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	seedMatched(t, store, "l1", -100)

	prof := testProfile(-100)
	prof.StopLocations = []string{"Canggu"}
	g := newTestGate(store, sender, prof)

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Blocked)
	assert.Empty(t, sender.sent)
}

func TestRunReportsSendErrors(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{err: errors.New("telegram down")}
	seedMatched(t, store, "l1", -100)
	g := newTestGate(store, sender, testProfile(-100))

	s, err := g.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, s.Errors)

	// Listing stays pending for the next run.
	sender.err = nil
	s, err = g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Sent)
}

func TestRunOldestFirstWithBatchCap(t *testing.T) {
	store := repository.NewMemoryStore()
	sender := &fakeSender{}
	for _, id := range []string{"a", "b", "c"} {
		seedMatched(t, store, id, -100)
	}
	g := newTestGate(store, sender, testProfile(-100))
	g.cfg.BatchSize = 2

	s, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Sent)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].text, "example.com/a")
	assert.Contains(t, sender.sent[1].text, "example.com/b")
}

func TestInQuietHoursWindow(t *testing.T) {
	g := newTestGate(repository.NewMemoryStore(), &fakeSender{})
	at := func(hourUTC8 int) time.Time {
		return time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC).
			Add(time.Duration(hourUTC8-8) * time.Hour)
	}
	assert.True(t, g.inQuietHours(at(23)))
	assert.True(t, g.inQuietHours(at(22)))
	assert.True(t, g.inQuietHours(at(3)))
	assert.False(t, g.inQuietHours(at(7)))
	assert.False(t, g.inQuietHours(at(12)))
	assert.False(t, g.inQuietHours(at(21)))
}

func TestFormatMessageOmitsUnknowns(t *testing.T) {
	l := &models.Listing{Title: "Simple room", URL: "https://example.com/x"}
	text := FormatMessage(l)
	assert.Contains(t, text, "Simple room")
	assert.NotContains(t, text, "IDR")
	assert.NotContains(t, text, "🛏")
	assert.Contains(t, text, "https://example.com/x")
}

func TestFormatMessageStudio(t *testing.T) {
	zero := 0
	l := &models.Listing{Title: "Studio", Bedrooms: &zero}
	assert.Contains(t, FormatMessage(l), "Studio")
}

func TestFormatIDR(t *testing.T) {
	assert.Equal(t, "12.000.000", formatIDR(12_000_000))
	assert.Equal(t, "950.000", formatIDR(950_000))
	assert.Equal(t, "100", formatIDR(100))
}
