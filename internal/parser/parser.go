package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Extracted holds the typed attributes derived from a listing's free text.
// Pointer fields are nil when nothing matched: nil bedrooms means unknown,
// while 0 means a confirmed studio.
type Extracted struct {
	Bedrooms       *int
	Price          *float64 // IDR per month
	PriceAmbiguous bool     // more than one monetary mention found
	Kitchen        string
	HasAC          bool
	HasWifi        bool
	HasPool        bool
	HasParking     bool
	Utilities      string
	Furniture      string
	RentalTerm     string
	Location       *string
	Phone          *string
}

// categoryEntry is one row of an ordered (pattern, category) table. Tables
// are evaluated top to bottom and the first matching row wins, so priority
// is positional.
type categoryEntry struct {
	re       *regexp.Regexp
	category string
}

// matchCategory runs an ordered table against text and returns the first
// matching category, or def when nothing matches. It is the single matcher
// shared by kitchen, utilities, furniture and rental-term extraction.
func matchCategory(text string, table []categoryEntry, def string) string {
	for _, e := range table {
		if e.re.MatchString(text) {
			return e.category
		}
	}
	return def
}

// Parser extracts structured parameters from property descriptions. It is
// a pure function of its input text: no network, no side effects.
type Parser struct {
	locations []string

	bedroomTable  []bedroomEntry
	wordBedrooms  *regexp.Regexp
	kitchenTable  []categoryEntry
	utilityTable  []categoryEntry
	furnishTable  []categoryEntry
	termTable     []categoryEntry
	amenityTables map[string][]*regexp.Regexp
	negAmenities  map[string][]*regexp.Regexp
	phonePatterns []*regexp.Regexp
}

type bedroomEntry struct {
	re     *regexp.Regexp
	studio bool // pattern means "confirmed 0 bedrooms"
}

var wordToNum = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// New builds a Parser. The gazetteer defaults to the built-in Bali area
// list when locations is empty.
func New(locations []string) *Parser {
	if len(locations) == 0 {
		locations = defaultLocations
	}
	p := &Parser{locations: locations}

	// Ordered by confidence: explicit "bedroom" wording, then the BR/bed
	// abbreviations, then the Indonesian KT, then the studio literal.
	p.bedroomTable = []bedroomEntry{
		{re: regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[\s-]*(?:bedrooms?|kamar tidur)\b`)},
		{re: regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[\s-]*(?:br|beds?)\b`)},
		{re: regexp.MustCompile(`(?:^|[^\d])(\d{1,2})[\s-]*kt\b`)},
		{re: regexp.MustCompile(`\bstudio\b`), studio: true},
	}
	p.wordBedrooms = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten)[\s-]*(?:bed(?:room)?s?|br)\b`)

	p.kitchenTable = []categoryEntry{
		{regexp.MustCompile(`closed kitchen|enclosed kitchen|indoor kitchen|private kitchen|full kitchen|western kitchen|dapur tertutup|dapur indoor`), "enclosed"},
		{regexp.MustCompile(`outdoor kitchen|open kitchen|dapur outdoor|dapur terbuka`), "outdoor"},
		{regexp.MustCompile(`shared kitchen|common kitchen|dapur bersama`), "shared"},
		{regexp.MustCompile(`kitchenette|mini kitchen|small kitchen`), "kitchenette"},
		{regexp.MustCompile(`no kitchen|tanpa dapur|without kitchen`), "none"},
	}

	p.utilityTable = []categoryEntry{
		{regexp.MustCompile(`(?:bills?|utilities?|listrik|air)\s+(?:included|include|inc|sudah termasuk)|all\s+(?:bills?|utilities?)\s+included|include\s+(?:bills?|utilities?)`), "included"},
		{regexp.MustCompile(`(?:bills?|utilities?|listrik|air)\s+(?:excluded|exclude|exc|belum termasuk|tidak termasuk)|(?:bills?|utilities?)\s+(?:not included|separate|extra)|plus\s+(?:bills?|utilities?)`), "excluded"},
	}

	p.furnishTable = []categoryEntry{
		{regexp.MustCompile(`unfurnished|no furniture|tanpa perabotan`), "unfurnished"},
		{regexp.MustCompile(`fully furnished|full furniture|completely furnished|lengkap perabotan`), "fully"},
		{regexp.MustCompile(`semi furnished|partial furniture|sebagian perabotan`), "partially"},
	}

	// Monthly first: it is the inclusive signal and must dominate yearly
	// when both appear.
	p.termTable = []categoryEntry{
		{regexp.MustCompile(`(?:per|/)\s*(?:month|bulan|bln)|monthly|bulanan`), "monthly"},
		{regexp.MustCompile(`(?:per|/)\s*(?:year|tahun|thn)|yearly|tahunan`), "yearly"},
		{regexp.MustCompile(`(?:per|/)\s*(?:day|hari)|daily|harian|nightly`), "daily"},
		{regexp.MustCompile(`(?:per|/)\s*(?:week|minggu)|weekly|mingguan`), "weekly"},
	}

	p.amenityTables = map[string][]*regexp.Regexp{
		"ac":      compileAll(`\bac\b`, `air conditioning`, `air conditioner`, `air con`, `a/c`, `aircon`),
		"wifi":    compileAll(`\bwifi\b`, `wi-fi`, `internet`, `wireless`),
		"pool":    compileAll(`\bpool\b`, `swimming pool`, `kolam renang`),
		"parking": compileAll(`parking`, `parkir`, `garage`),
	}
	p.negAmenities = map[string][]*regexp.Regexp{
		"ac":   compileAll(`no ac\b`, `no air con`, `fan only`, `kipas saja`, `tanpa ac`),
		"wifi": compileAll(`no wifi`, `no internet`, `tanpa wifi`, `tanpa internet`),
	}

	p.phonePatterns = compileAll(
		`\+?62\s?8\d{2}[\s-]?\d{3,4}[\s-]?\d{3,4}`,
		`08\d{2}[\s-]?\d{3,4}[\s-]?\d{3,4}`,
		`\+?62[\s-]?8\d{9,11}`,
	)
	return p
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		out = append(out, regexp.MustCompile(pat))
	}
	return out
}

// Parse extracts all structured parameters from the listing text.
func (p *Parser) Parse(text string) Extracted {
	if text == "" {
		return Extracted{
			Kitchen:    "unknown",
			Utilities:  "unspecified",
			Furniture:  "unspecified",
			RentalTerm: "unspecified",
		}
	}
	lower := strings.ToLower(text)

	price, ambiguous := p.extractPrice(lower)
	return Extracted{
		Bedrooms:       p.extractBedrooms(lower),
		Price:          price,
		PriceAmbiguous: ambiguous,
		Kitchen:        matchCategory(lower, p.kitchenTable, "unknown"),
		HasAC:          p.checkAmenity(lower, "ac"),
		HasWifi:        p.checkAmenity(lower, "wifi"),
		HasPool:        p.checkAmenity(lower, "pool"),
		HasParking:     p.checkAmenity(lower, "parking"),
		Utilities:      matchCategory(lower, p.utilityTable, "unspecified"),
		Furniture:      matchCategory(lower, p.furnishTable, "unspecified"),
		RentalTerm:     matchCategory(lower, p.termTable, "unspecified"),
		Location:       p.ExtractLocation(lower),
		Phone:          p.ExtractPhone(text),
	}
}

func (p *Parser) extractBedrooms(text string) *int {
	for _, entry := range p.bedroomTable {
		for _, m := range entry.re.FindAllStringSubmatch(text, -1) {
			if entry.studio {
				zero := 0
				return &zero
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			// Guard against postal codes and ids being mistaken for a
			// bedroom count.
			if n >= 0 && n <= 20 {
				return &n
			}
		}
	}
	if m := p.wordBedrooms.FindStringSubmatch(text); m != nil {
		if n, ok := wordToNum[m[1]]; ok {
			return &n
		}
	}
	return nil
}

func (p *Parser) checkAmenity(text, amenity string) bool {
	// Explicit negatives ("no AC", "fan only") override any positive mention.
	for _, re := range p.negAmenities[amenity] {
		if re.MatchString(text) {
			return false
		}
	}
	for _, re := range p.amenityTables[amenity] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// ExtractPhone returns the first phone number found, normalized to the
// canonical +62 international form.
func (p *Parser) ExtractPhone(text string) *string {
	for _, re := range p.phonePatterns {
		m := re.FindString(text)
		if m == "" {
			continue
		}
		normalized := normalizePhone(m)
		return &normalized
	}
	return nil
}

func normalizePhone(raw string) string {
	digits := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(strings.TrimSpace(raw))
	if strings.HasPrefix(digits, "0") {
		digits = "62" + digits[1:]
	}
	return "+" + digits
}
