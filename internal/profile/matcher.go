// Package profile evaluates deduplicated listings against per-audience
// acceptance criteria. One decision row per (listing, profile) pair; a
// listing whose bedroom count is unknown against a profile with a bedroom
// constraint is deferred — no row at all — so a later re-run can decide it
// once the count is known.
package profile

import (
	"fmt"
	"strings"

	"github.com/PollyDrive/estate/internal/models"
	"github.com/PollyDrive/estate/internal/parser"
)

// Outcome of one listing x profile evaluation.
type Outcome int

const (
	Passed Outcome = iota
	Rejected
	Deferred
)

// Decision carries the outcome and, for rejections, the specific reason.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Evaluate checks a listing against one profile's criteria in order:
// bedroom range, price ceiling, allowed-location allow-list, stop-location
// block-list.
func Evaluate(l *models.Listing, p *models.ChatProfile) Decision {
	if d, done := checkBedrooms(l, p); done {
		return d
	}

	if l.PriceExtracted != nil && *l.PriceExtracted > p.PriceMax {
		return Decision{Outcome: Rejected,
			Reason: fmt.Sprintf("REJECT_PRICE:%.0f>%.0f", *l.PriceExtracted, p.PriceMax)}
	}

	// Location signal: the extracted field when present, otherwise the raw
	// location and description text.
	searchText := ""
	if l.Location != nil {
		searchText = *l.Location
	}
	if strings.TrimSpace(searchText) == "" {
		searchText = strings.TrimSpace(l.RawLocation + "\n" + l.Description)
	}

	if len(p.AllowedLocations) > 0 {
		if searchText == "" {
			// No location signal at all: we cannot confirm the listing is
			// in the right area, so reject rather than pass through.
			return Decision{Outcome: Rejected, Reason: "REJECT_LOCATION:no_signal"}
		}
		found := false
		for _, a := range p.AllowedLocations {
			if parser.MentionsLocation(searchText, a) {
				found = true
				break
			}
		}
		if !found {
			return Decision{Outcome: Rejected, Reason: "REJECT_LOCATION:not_allowed"}
		}
	}

	for _, s := range p.StopLocations {
		if parser.MentionsLocation(searchText, s) {
			return Decision{Outcome: Rejected,
				Reason: "REJECT_STOP_LOCATION:" + strings.ToLower(s)}
		}
	}

	return Decision{Outcome: Passed, Reason: "PASS"}
}

// checkBedrooms returns (decision, true) when the bedroom check settles the
// evaluation. An unknown count against any bedroom constraint defers: it is
// neither accepted nor rejected.
func checkBedrooms(l *models.Listing, p *models.ChatProfile) (Decision, bool) {
	if l.Bedrooms == nil {
		if p.BedroomsMin >= 1 || p.BedroomsMax != nil {
			return Decision{Outcome: Deferred, Reason: "DEFER_BEDROOMS:unknown"}, true
		}
		return Decision{}, false
	}
	if *l.Bedrooms < p.BedroomsMin {
		return Decision{Outcome: Rejected,
			Reason: fmt.Sprintf("REJECT_BEDROOMS:%d<%d", *l.Bedrooms, p.BedroomsMin)}, true
	}
	if p.BedroomsMax != nil && *l.Bedrooms > *p.BedroomsMax {
		return Decision{Outcome: Rejected,
			Reason: fmt.Sprintf("REJECT_BEDROOMS:%d>%d", *l.Bedrooms, *p.BedroomsMax)}, true
	}
	return Decision{}, false
}
