package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/models"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := &config.Config{}
	cfg.Filters.StopWords = []string{"dijual", "for sale", "tanah", "kost", "salon"}
	cfg.Filters.StopLocations = []string{"Kuta"}
	cfg.Filters.BedroomsMin = 2
	cfg.Filters.PriceMax = 20_000_000
	cfg.Filters.MinTermMonths = 3
	return New(cfg, zap.NewNop())
}

func listing(title, desc string, bedrooms *int, price *float64, term string) *models.Listing {
	if term == "" {
		term = models.TermUnspecified
	}
	return &models.Listing{
		Title:          title,
		Description:    desc,
		Bedrooms:       bedrooms,
		PriceExtracted: price,
		RentalTerm:     term,
	}
}

func TestStopWordRejects(t *testing.T) {
	e := testEngine(t)
	r := e.Evaluate(listing("Villa dijual murah", "", nil, nil, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_STOP_WORD:dijual", r.Reason)
}

func TestStopWordIsWordBounded(t *testing.T) {
	e := testEngine(t)
	// "kost" inside a longer token must not trip the rule.
	r := e.Evaluate(listing("Rumah di perkostan street", "monthly rent villa", nil, nil, ""))
	assert.True(t, r.Passed)
}

func TestFirstMatchingRuleWins(t *testing.T) {
	e := testEngine(t)
	// Triggers both rule 1 (stop word) and rule 4 (price); rule 1's code
	// must be returned.
	price := 25_000_000.0
	r := e.Evaluate(listing("Tanah for rent", "great plot", nil, &price, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_STOP_WORD:tanah", r.Reason)
}

func TestStopLocationContainmentOnly(t *testing.T) {
	e := testEngine(t)

	r := e.Evaluate(listing("Villa in Kuta", "2BR", nil, nil, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_STOP_LOCATION:kuta", r.Reason)

	// Distance reference to a stop location is not a containment match.
	r = e.Evaluate(listing("Villa in Ubud", "30 minutes from Kuta", nil, nil, ""))
	assert.True(t, r.Passed)
}

func TestBedroomFloor(t *testing.T) {
	e := testEngine(t)

	one := 1
	r := e.Evaluate(listing("Villa", "nice", &one, nil, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_BEDROOMS:1<2", r.Reason)

	// Unknown bedroom count is deferred at this stage, never rejected.
	r = e.Evaluate(listing("Villa", "nice", nil, nil, ""))
	assert.True(t, r.Passed)
}

func TestPriceCeiling(t *testing.T) {
	e := testEngine(t)
	price := 22_000_000.0
	r := e.Evaluate(listing("Villa", "nice", nil, &price, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_PRICE:22000000>20000000", r.Reason)
}

func TestShortTermRejected(t *testing.T) {
	e := testEngine(t)

	r := e.Evaluate(listing("Villa", "nightly rate", nil, nil, models.TermDaily))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_TERM:daily", r.Reason)

	r = e.Evaluate(listing("Villa", "minimum 2 months stay", nil, nil, ""))
	assert.False(t, r.Passed)
	assert.Equal(t, "REJECT_TERM:minimum_2_months", r.Reason)
}

func TestMonthlyClearsTermRules(t *testing.T) {
	e := testEngine(t)
	// Monthly indicator present: short-minimum text no longer rejects.
	r := e.Evaluate(listing("Villa", "monthly rent, minimum 2 months", nil, nil, models.TermMonthly))
	assert.True(t, r.Passed)
}

func TestCleanListingPasses(t *testing.T) {
	e := testEngine(t)
	two := 2
	price := 14_000_000.0
	r := e.Evaluate(listing("Villa 2BR", "pool, kitchen, monthly", &two, &price, models.TermMonthly))
	assert.True(t, r.Passed)
	assert.Equal(t, "PASS", r.Reason)
}
