package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/llm"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/repository"
)

// fakeClassifier decides by looking for a marker word in the description.
type fakeClassifier struct {
	err   error
	calls int
}

func (f *fakeClassifier) Classify(_ context.Context, _, description string) (llm.Decision, error) {
	f.calls++
	if f.err != nil {
		return llm.Decision{}, f.err
	}
	if strings.Contains(description, "yearly only") {
		return llm.Decision{Code: llm.CodeRejectTerm, Model: "fake/model"}, nil
	}
	return llm.Decision{Code: llm.CodePass, Model: "fake/model"}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.BatchLimit = 100
	cfg.Pipeline.Concurrency = 2
	cfg.Filters.PriceMax = 16_000_000
	cfg.Filters.BedroomsMin = 1
	cfg.Filters.MinTermMonths = 3
	cfg.Filters.PriceMaxHard = 100_000_000
	cfg.Filters.BedroomsMaxHard = 5
	cfg.Filters.StopWords = []string{"kost"}
	return cfg
}

func testProfiles() []models.ChatProfile {
	two := 3
	return []models.ChatProfile{
		{ChatID: -100, Name: "canggu", BedroomsMin: 1, BedroomsMax: &two, PriceMax: 16_000_000,
			AllowedLocations: []string{"Canggu"}, Enabled: true},
		{ChatID: -200, Name: "disabled", PriceMax: 1, Enabled: false},
	}
}

func newTestPipeline(store Store, c Classifier) *Pipeline {
	return New(store, testConfig(), testProfiles(), c, zap.NewNop())
}

func ingestLine(id, desc string) string {
	return `{"external_id":"` + id + `","source":"marketplace","title":"Villa","description":"` + desc + `","url":"https://example.com/` + id + `"}`
}

func TestIngest(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, nil)

	input := strings.Join([]string{
		ingestLine("l1", "2 bedroom villa in canggu for rent 12jt per month"),
		`not json`,
		`{"external_id":"","source":"marketplace","description":"x","url":"u"}`,
		ingestLine("l1", "same id again"),
	}, "\n")

	counts, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Processed)
	assert.Equal(t, 1, counts.Passed)
	assert.Equal(t, 2, counts.Rejected)
	assert.Equal(t, 1, counts.Duplicates)
}

func TestCollectExtractsAndAdvances(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("l1", "2 bedroom villa in canggu area, 12jt per month, fully furnished")))
	require.NoError(t, err)

	counts, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)

	l, err := store.GetByExternalID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCollected, l.Status)
	require.NotNil(t, l.Bedrooms)
	assert.Equal(t, 2, *l.Bedrooms)
	require.NotNil(t, l.PriceExtracted)
	assert.Equal(t, 12_000_000.0, *l.PriceExtracted)
	require.NotNil(t, l.Location)
	assert.Equal(t, "Canggu", *l.Location)
	assert.Equal(t, models.FurnitureFully, l.Furniture)
}

func TestCollectHardCapArchives(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("big", "Land for sale 900jt per month, 8 bedrooms")))
	require.NoError(t, err)

	counts, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Archived)
	assert.True(t, store.Archived("big"))

	_, err = store.GetByExternalID(ctx, "big")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCollectIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("l1", "villa 12jt monthly")))
	require.NoError(t, err)

	_, err = p.Collect(ctx)
	require.NoError(t, err)
	counts, err := p.Collect(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts.Processed)
}

func advanceTo(t *testing.T, p *Pipeline, store *repository.MemoryStore, target models.Status) {
	t.Helper()
	ctx := context.Background()
	stages := []struct {
		after models.Status
		run   func(context.Context) (Counts, error)
	}{
		{models.StatusCollected, p.Collect},
		{models.StatusStructurallyFiltered, p.Filter},
		{models.StatusSemanticallyFiltered, p.Classify},
		{models.StatusDeduplicated, p.Dedup},
		{models.StatusMatchedToProfile, p.Match},
	}
	for _, s := range stages {
		_, err := s.run(ctx)
		require.NoError(t, err)
		if s.after == target {
			return
		}
	}
}

func TestFilterRejectsWithReason(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, nil)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(strings.Join([]string{
		ingestLine("good", "2 bedroom villa in canggu, 12jt per month"),
		ingestLine("bad", "kost room available, 2jt per month, 1 bedroom"),
	}, "\n")))
	require.NoError(t, err)
	_, err = p.Collect(ctx)
	require.NoError(t, err)

	counts, err := p.Filter(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
	assert.Equal(t, 1, counts.Rejected)

	bad, err := store.GetByExternalID(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStructurallyRejected, bad.Status)
	require.NotNil(t, bad.RejectionReason)
	assert.Equal(t, "REJECT_STOP_WORD:kost", *bad.RejectionReason)
}

func TestClassifyPassAndReject(t *testing.T) {
	store := repository.NewMemoryStore()
	clf := &fakeClassifier{}
	p := newTestPipeline(store, clf)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(strings.Join([]string{
		ingestLine("pass", "2 bedroom villa in canggu, 12jt per month"),
		ingestLine("rej", "2 bedroom villa in canggu, 12jt per month, yearly only contract"),
	}, "\n")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusStructurallyFiltered)

	counts, err := p.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
	assert.Equal(t, 1, counts.Rejected)

	rej, err := store.GetByExternalID(ctx, "rej")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSemanticallyRejected, rej.Status)
	require.NotNil(t, rej.RejectionReason)
	assert.Equal(t, llm.CodeRejectTerm, *rej.RejectionReason)
	require.NotNil(t, rej.LLMModel)
	assert.Equal(t, "fake/model", *rej.LLMModel)
}

func TestClassifyTransientErrorLeavesStatus(t *testing.T) {
	store := repository.NewMemoryStore()
	clf := &fakeClassifier{err: errors.New("provider down")}
	p := newTestPipeline(store, clf)
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("l1", "2 bedroom villa in canggu, 12jt per month")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusStructurallyFiltered)

	counts, err := p.Classify(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, counts.Errors)

	l, err := store.GetByExternalID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStructurallyFiltered, l.Status)

	// The next run picks the listing up again.
	clf.err = nil
	counts, err = p.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
}

func TestDedupMarksDuplicates(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, &fakeClassifier{})
	ctx := context.Background()

	desc := "2 bedroom villa in canggu, 12jt per month"
	_, err := p.Ingest(ctx, strings.NewReader(strings.Join([]string{
		ingestLine("first", desc),
		ingestLine("second", desc),
	}, "\n")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusSemanticallyFiltered)

	counts, err := p.Dedup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
	assert.Equal(t, 1, counts.Duplicates)

	second, err := store.GetByExternalID(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDuplicateOfCanonical, second.Status)
	require.NotNil(t, second.DuplicateOf)
	assert.Equal(t, "first", *second.DuplicateOf)
}

func TestDedupRepostLandsOnExistingCanonical(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, &fakeClassifier{})
	ctx := context.Background()

	desc := "2 bedroom villa in canggu, 12jt per month"
	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("orig", desc)))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusSemanticallyFiltered)
	_, err = p.Dedup(ctx)
	require.NoError(t, err)

	// Same content arrives again later.
	_, err = p.Ingest(ctx, strings.NewReader(ingestLine("repost", desc)))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusSemanticallyFiltered)

	counts, err := p.Dedup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Duplicates)

	repost, err := store.GetByExternalID(ctx, "repost")
	require.NoError(t, err)
	require.NotNil(t, repost.DuplicateOf)
	assert.Equal(t, "orig", *repost.DuplicateOf)
}

func TestMatchWritesDecisionRows(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, &fakeClassifier{})
	ctx := context.Background()

	_, err := p.Ingest(ctx, strings.NewReader(strings.Join([]string{
		ingestLine("fit", "2 bedroom villa in canggu, 12jt per month"),
		ingestLine("wrongloc", "2 bedroom villa in ubud, 12jt per month"),
	}, "\n")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusDeduplicated)

	counts, err := p.Match(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
	assert.Equal(t, 1, counts.Rejected)

	for _, id := range []string{"fit", "wrongloc"} {
		l, err := store.GetByExternalID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusMatchedToProfile, l.Status)
	}

	pending, err := store.ListUnsent(ctx, -100, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "fit", pending[0].Listing.ExternalID)
}

func TestMatchDefersUnknownBedrooms(t *testing.T) {
	store := repository.NewMemoryStore()
	p := newTestPipeline(store, &fakeClassifier{})
	ctx := context.Background()

	// No bedroom signal anywhere in the text.
	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("vague", "villa in canggu, 12jt per month")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusDeduplicated)

	counts, err := p.Match(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Deferred)

	l, err := store.GetByExternalID(ctx, "vague")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeduplicated, l.Status)

	pending, err := store.ListUnsent(ctx, -100, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMatchAdvancesWhenOneProfileDecides(t *testing.T) {
	store := repository.NewMemoryStore()
	profiles := append(testProfiles(), models.ChatProfile{
		ChatID: -300, Name: "anywhere", PriceMax: 20_000_000, Enabled: true,
	})
	p := New(store, testConfig(), profiles, &fakeClassifier{}, zap.NewNop())
	ctx := context.Background()

	// The bedroom-constrained profile defers on the missing bedroom count,
	// but the unconstrained one decides, so its delivery must not wait.
	_, err := p.Ingest(ctx, strings.NewReader(ingestLine("vague", "villa in canggu, 12jt per month")))
	require.NoError(t, err)
	advanceTo(t, p, store, models.StatusDeduplicated)

	counts, err := p.Match(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Passed)
	assert.Zero(t, counts.Deferred)

	l, err := store.GetByExternalID(ctx, "vague")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMatchedToProfile, l.Status)

	pending, err := store.ListUnsent(ctx, -300, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "vague", pending[0].Listing.ExternalID)

	// The deferred profile still has no row until the bedroom count is known.
	pending, err = store.ListUnsent(ctx, -100, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
