// Package filter implements the deterministic rule engine applied after
// extraction. Rules run in a fixed order and the first matching rejection
// wins; a listing with zero rejections passes.
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/PollyDrive/estate/internal/config"
	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/parser"
)

// Result is the outcome of the rule engine for one listing. Reason carries
// the specific rule id, never a generic "rejected".
type Result struct {
	Passed bool
	Reason string
}

// Engine evaluates the configured rejection rules against a listing and its
// extracted fields.
type Engine struct {
	stopWords     []stopWord
	stopLocations []string
	bedroomsMin   int
	priceMax      float64
	minTermMonths int
	logger        *zap.Logger
}

type stopWord struct {
	word string
	re   *regexp.Regexp
}

var minTermRe = regexp.MustCompile(`minimum\s+(\d+)\s+months?|min\.?\s*(\d+)\s*(?:months?|bulan)`)

// New builds an Engine from the global filter configuration.
func New(cfg *config.Config, logger *zap.Logger) *Engine {
	stopWords := make([]stopWord, 0, len(cfg.Filters.StopWords))
	for _, w := range cfg.Filters.StopWords {
		lw := strings.ToLower(w)
		// Single tokens are word-bounded; multi-word phrases match as
		// plain substrings.
		var re *regexp.Regexp
		if !strings.ContainsAny(lw, " \t") {
			re = regexp.MustCompile(`\b` + regexp.QuoteMeta(lw) + `\b`)
		}
		stopWords = append(stopWords, stopWord{word: lw, re: re})
	}
	stopLocations := make([]string, 0, len(cfg.Filters.StopLocations))
	for _, l := range cfg.Filters.StopLocations {
		stopLocations = append(stopLocations, strings.ToLower(l))
	}
	return &Engine{
		stopWords:     stopWords,
		stopLocations: stopLocations,
		bedroomsMin:   cfg.Filters.BedroomsMin,
		priceMax:      cfg.Filters.PriceMax,
		minTermMonths: cfg.Filters.MinTermMonths,
		logger:        logger,
	}
}

// Evaluate applies the rules to a listing in order:
//  1. hard stop-words anywhere in text
//  2. stop-locations (containment matching, distance references excluded)
//  3. bedroom floor (unknown count is deferred, not rejected)
//  4. price ceiling
//  5. disallowed short rental terms, unless a monthly indicator is present
func (e *Engine) Evaluate(l *models.Listing) Result {
	text := strings.ToLower(l.Title + " " + l.Description)

	for _, w := range e.stopWords {
		if w.matches(text) {
			return reject("REJECT_STOP_WORD:" + w.word)
		}
	}

	for _, loc := range e.stopLocations {
		if parser.MentionsLocation(text, loc) {
			return reject("REJECT_STOP_LOCATION:" + loc)
		}
	}

	if l.Bedrooms != nil && e.bedroomsMin > 0 && *l.Bedrooms < e.bedroomsMin {
		return reject(fmt.Sprintf("REJECT_BEDROOMS:%d<%d", *l.Bedrooms, e.bedroomsMin))
	}

	if l.PriceExtracted != nil && e.priceMax > 0 && *l.PriceExtracted > e.priceMax {
		return reject(fmt.Sprintf("REJECT_PRICE:%.0f>%.0f", *l.PriceExtracted, e.priceMax))
	}

	if r := e.checkTerm(l, text); r.Reason != "" {
		return r
	}

	return Result{Passed: true, Reason: "PASS"}
}

// checkTerm rejects short-term indicators. Monthly is the inclusive signal:
// its presence clears any daily/weekly/yearly/short-minimum hit.
func (e *Engine) checkTerm(l *models.Listing, text string) Result {
	if l.RentalTerm == models.TermMonthly {
		return Result{Passed: true}
	}

	switch l.RentalTerm {
	case models.TermDaily, models.TermWeekly:
		return reject("REJECT_TERM:" + l.RentalTerm)
	}

	if m := minTermRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n, err := strconv.Atoi(raw); err == nil && n < e.minTermMonths {
			return reject(fmt.Sprintf("REJECT_TERM:minimum_%d_months", n))
		}
	}
	return Result{Passed: true}
}

func reject(reason string) Result {
	return Result{Passed: false, Reason: reason}
}

func (w stopWord) matches(text string) bool {
	if w.re != nil {
		return w.re.MatchString(text)
	}
	return strings.Contains(text, w.word)
}
