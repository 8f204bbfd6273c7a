package parser

import (
	"regexp"
	"strings"
)

// defaultLocations is the built-in gazetteer of Bali areas. A config-provided
// list replaces it wholesale.
var defaultLocations = []string{
	"Ubud", "Abiansemal", "Singakerta", "Mengwi", "Gianyar",
	"Canggu", "Seminyak", "Kuta", "Legian", "Sanur",
	"Denpasar", "Uluwatu", "Jimbaran", "Nusa Dua",
	"Pererenan", "Berawa", "Echo Beach", "Batu Bolong",
	"Umalas", "Kerobokan", "Petitenget",
	"Bingin", "Padang Padang", "Balangan",
	"Candidasa", "Amed", "Lovina", "Singaraja",
	"Tabanan", "Kediri", "Munggu", "Tanah Lot",
	"Tegallalang", "Payangan", "Petulu", "Mas", "Lodtunduh",
	"Sukawati", "Celuk", "Batuan", "Blahbatuh",
}

// distancePrepositions are words that, immediately before a place name, mean
// the text is measuring distance to the place rather than locating the
// listing in it ("30 minutes from Seminyak", "dekat Canggu").
var distancePrepositions = map[string]bool{
	"from": true, "dari": true, "ke": true, "to": true,
	"near": true, "dekat": true, "menuju": true, "of": true,
}

var lastWordRe = regexp.MustCompile(`([a-z/]+)\s*$`)

// ExtractLocation matches the text against the gazetteer in two tiers.
// Tier 1 is an explicit containment phrase ("in X", "at X", "di X",
// "X area"); tier 2 is the positional heuristic of the name opening the
// text or a line. Tier 1 always outranks tier 2, and a name mentioned only
// as a distance reference never matches.
func (p *Parser) ExtractLocation(text string) *string {
	lower := strings.ToLower(text)

	for _, loc := range p.locations {
		ll := strings.ToLower(loc)
		esc := regexp.QuoteMeta(ll)
		containment := []string{
			`\bin\s+` + esc + `\b`,
			`\bat\s+` + esc + `\b`,
			`\bdi\s+` + esc + `\b`,
			esc + `\s+area\b`,
			esc + `\s+location\b`,
		}
		for _, pat := range containment {
			re := regexp.MustCompile(pat)
			for _, idx := range re.FindAllStringIndex(lower, -1) {
				if !distanceContext(lower, idx[0]) {
					name := loc
					return &name
				}
			}
		}
	}

	for _, loc := range p.locations {
		esc := regexp.QuoteMeta(strings.ToLower(loc))
		re := regexp.MustCompile(`(?m)(?:^|\n)\s*` + esc + `\b`)
		if re.MatchString(lower) {
			name := loc
			return &name
		}
	}
	return nil
}

// MentionsLocation reports whether loc is referenced anywhere in text as an
// actual place, not just as a distance landmark. Stop-location checks use
// this so "30 minutes from Seminyak" does not trip a Seminyak block rule.
// Short tokens (3 chars or fewer) require word boundaries to avoid false
// positives inside longer names.
func MentionsLocation(text, loc string) bool {
	lower := strings.ToLower(text)
	ll := strings.ToLower(strings.TrimSpace(loc))
	if ll == "" {
		return false
	}
	esc := regexp.QuoteMeta(ll)
	pat := esc
	if len(ll) <= 3 {
		pat = `\b` + esc + `\b`
	}
	re := regexp.MustCompile(pat)
	for _, idx := range re.FindAllStringIndex(lower, -1) {
		if !distanceContext(lower, idx[0]) {
			return true
		}
	}
	return false
}

// distanceContext reports whether the word immediately preceding position
// pos is a distance preposition.
func distanceContext(text string, pos int) bool {
	m := lastWordRe.FindStringSubmatch(text[:pos])
	if m == nil {
		return false
	}
	return distancePrepositions[m[1]]
}
