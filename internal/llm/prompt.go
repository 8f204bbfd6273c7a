package llm

import (
	"fmt"
	"strings"
)

// Classification codes — the closed response vocabulary. The model must
// answer with exactly one of these tokens.
const (
	CodePass            = "PASS"
	CodeRejectTerm      = "REJECT_TERM"
	CodeRejectType      = "REJECT_TYPE"
	CodeRejectBedrooms  = "REJECT_BEDROOMS"
	CodeRejectFurniture = "REJECT_FURNITURE"
	CodeRejectPrice     = "REJECT_PRICE"
)

var validCodes = map[string]bool{
	CodePass:            true,
	CodeRejectTerm:      true,
	CodeRejectType:      true,
	CodeRejectBedrooms:  true,
	CodeRejectFurniture: true,
	CodeRejectPrice:     true,
}

// SystemInstruction tells the model to act as a strict rental-listing
// classifier. The checks are numbered and must be applied in that order,
// returning the first matching code.
const SystemInstruction = `You are a strict classifier of Bali rental listings.
Read the listing and apply the following checks IN ORDER. Return the code of
the FIRST check that matches. If no check matches, return PASS.

1. RENTAL TERM. If the listing mentions monthly rent (monthly, per month,
   /month, bulanan, per bulan) it passes this check even when yearly is also
   mentioned — monthly always wins. If there is NO monthly indicator and the
   listing is yearly only (yearly, tahunan, per year), daily/nightly, weekly,
   or demands a minimum stay shorter than 3 months, return REJECT_TERM.
2. LISTING TYPE. If it is a sale (dijual, for sale), leasehold/freehold land
   (tanah), office or commercial space, salon, or a shared room / kos /
   kost / boarding house, return REJECT_TYPE.
3. BEDROOMS. If the listing clearly offers exactly one bedroom (1BR,
   1 bedroom, 1 kamar tidur), return REJECT_BEDROOMS.
4. FURNITURE. If the property is unfurnished or a bare shell (unfurnished,
   tanpa perabotan, no furniture), return REJECT_FURNITURE.
5. PRICE. If the monthly price is clearly above %.0f IDR (accept shorthand
   like 25jt, 25 juta, 25 million for 25,000,000), return REJECT_PRICE.

Answer with ONE code only: PASS, REJECT_TERM, REJECT_TYPE, REJECT_BEDROOMS,
REJECT_FURNITURE or REJECT_PRICE. No explanations, no punctuation.`

// fewShot examples pin down the ordering rules the model most often gets
// wrong, in particular the monthly-over-yearly precedence.
const fewShot = `Examples:

Listing: "2BR Villa, rent monthly or yearly, 15jt"
Answer: PASS

Listing: "Villa available yearly only, 150jt/year"
Answer: REJECT_TERM

Listing: "Dijual villa 3 kamar tidur di Ubud"
Answer: REJECT_TYPE

Listing: "Cozy 1 bedroom house, monthly 8jt"
Answer: REJECT_BEDROOMS

Listing: "Unfurnished 3BR house, monthly, 12jt"
Answer: REJECT_FURNITURE`

// BuildPrompt assembles the user prompt for one listing.
func BuildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString(fewShot)
	b.WriteString("\n\nListing: \"")
	b.WriteString(strings.TrimSpace(title))
	if description != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(description))
	}
	b.WriteString("\"\nAnswer:")
	return b.String()
}

// SystemPrompt renders the instruction with the configured price ceiling.
func SystemPrompt(priceMax float64) string {
	return fmt.Sprintf(SystemInstruction, priceMax)
}

// ParseCode normalizes a raw model reply into one of the closed vocabulary
// codes. Markdown fences and stray prose are stripped; anything that does
// not resolve to a known code is a malformed (transient) response.
func ParseCode(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Take the first token; some models echo "Answer: PASS" or add a period.
	fields := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '.' || r == ':' || r == '"'
	})
	for _, f := range fields {
		if validCodes[f] {
			return f, nil
		}
	}
	return "", fmt.Errorf("unrecognized classification reply %q", raw)
}
