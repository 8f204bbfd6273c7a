package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// USD listings are converted with a fixed rate so that non-IDR prices still
// land in the same unit for threshold comparisons.
const usdToIDR = 16300

var (
	// "20. 000,000" -> "20.000,000": separators split by stray whitespace.
	brokenGroupRe = regexp.MustCompile(`(\d)([.,])\s+(\d)`)

	usdPriceRe = regexp.MustCompile(`(?:usd|us\$|\$)\s*(\d[\d,]*(?:\.\d+)?)|(\d[\d,]*(?:\.\d+)?)\s*(?:usd|dollars?)`)

	// Ordered by confidence; earlier patterns claim their span first.
	idrPriceRes = []*regexp.Regexp{
		// 3.5 million, 3,5 juta
		regexp.MustCompile(`(\d+[.,]\d+)\s*(?:jt|juta|million|m)\b`),
		// 10 juta, 5jt, 14m
		regexp.MustCompile(`(\d+)\s*(?:jt|juta|million|m)\b`),
		// 180mln, 250mio, 90mill, 25mil
		regexp.MustCompile(`(\d+)\s*(?:mln|mio|mill|mil)\b`),
		// Rp/IDR prefix, optionally grouped
		regexp.MustCompile(`(?:rp|idr)[\s.]?(\d+(?:[.,]\d{3})*(?:[.,]\d+)?)`),
		// bare grouped literal like 10.000.000
		regexp.MustCompile(`(\d{1,3}(?:[.,]\d{3})+)`),
	}

	monthlyIndicatorRe = regexp.MustCompile(`monthly|/month|per month|\bmonth\b|/mo\b|bulanan|/bulan|per bulan|\bbln\b`)
	yearlyIndicatorRe  = regexp.MustCompile(`yearly|/year|per year|\byear\b|tahunan|/tahun|per tahun|/yr`)
	rentIndicatorRe    = regexp.MustCompile(`\brent|\bsewa\b|\bprice\b|\bharga\b|\bmonth|\byear|bulan|tahun|/mo\b|/yr`)
)

type priceMention struct {
	pos      int
	value    float64
	rentCtx  bool
	priority int
}

// extractPrice returns the monthly IDR price and whether the text carried
// more than one monetary mention. Among all mentions the first one adjacent
// to a rent-indicating term wins; when no mention has rent context, the
// highest-confidence pattern's match is used. Yearly-context prices are
// divided by 12 unless a monthly indicator appears in the same window —
// "monthly or yearly" keeps the monthly reading.
func (p *Parser) extractPrice(text string) (*float64, bool) {
	text = brokenGroupRe.ReplaceAllString(text, `$1$2$3`)

	var mentions []priceMention
	claimed := make([]bool, len(text))

	claim := func(start, end int) bool {
		for i := start; i < end && i < len(claimed); i++ {
			if claimed[i] {
				return false
			}
		}
		for i := start; i < end && i < len(claimed); i++ {
			claimed[i] = true
		}
		return true
	}

	// USD is detected first so IDR patterns cannot grab the bare number.
	for _, idx := range usdPriceRe.FindAllStringSubmatchIndex(text, -1) {
		raw := submatch(text, idx, 1)
		if raw == "" {
			raw = submatch(text, idx, 2)
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil || !claim(idx[0], idx[1]) {
			continue
		}
		mentions = append(mentions, priceMention{
			pos:      idx[0],
			value:    adjustForTerm(amount*usdToIDR, context(text, idx[0], idx[1])),
			rentCtx:  rentIndicatorRe.MatchString(context(text, idx[0], idx[1])),
			priority: 0,
		})
	}

	for prio, re := range idrPriceRes {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			matched := text[idx[0]:idx[1]]
			raw := submatch(text, idx, 1)
			value, ok := parseIDRAmount(raw, matched)
			if !ok || !claim(idx[0], idx[1]) {
				continue
			}
			ctx := context(text, idx[0], idx[1])
			mentions = append(mentions, priceMention{
				pos:      idx[0],
				value:    adjustForTerm(value, ctx),
				rentCtx:  rentIndicatorRe.MatchString(ctx),
				priority: prio + 1,
			})
		}
	}

	if len(mentions) == 0 {
		return nil, false
	}

	best := pickMention(mentions)
	return &best.value, len(mentions) > 1
}

func pickMention(mentions []priceMention) priceMention {
	// First rent-adjacent mention by text position.
	best := priceMention{pos: -1}
	for _, m := range mentions {
		if m.rentCtx && (best.pos == -1 || m.pos < best.pos) {
			best = m
		}
	}
	if best.pos != -1 {
		return best
	}
	// Fall back to the most confident pattern, earliest position.
	best = mentions[0]
	for _, m := range mentions[1:] {
		if m.priority < best.priority || (m.priority == best.priority && m.pos < best.pos) {
			best = m
		}
	}
	return best
}

func parseIDRAmount(raw, matched string) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	millions := strings.ContainsAny(matched, "jm") &&
		(strings.Contains(matched, "jt") || strings.Contains(matched, "juta") ||
			strings.Contains(matched, "million") || strings.Contains(matched, "mln") ||
			strings.Contains(matched, "mio") || strings.Contains(matched, "mill") ||
			strings.Contains(matched, "mil") || strings.HasSuffix(strings.TrimSpace(matched), "m"))
	if millions {
		// Comma is a decimal separator here: "3,5 juta" means 3.5.
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return v * 1_000_000, true
	}
	cleaned := strings.NewReplacer(",", "", ".", "").Replace(raw)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// adjustForTerm divides a yearly price down to monthly. The window is the
// ±50 chars around the match.
func adjustForTerm(value float64, ctx string) float64 {
	if yearlyIndicatorRe.MatchString(ctx) && !monthlyIndicatorRe.MatchString(ctx) {
		return value / 12
	}
	return value
}

// context returns the window around a match used for term and rent-adjacency
// checks: up to 50 chars each side, cut at sentence delimiters so a price in
// a neighboring sentence ("Land value 900jt. Rent 14jt/month") does not
// borrow that sentence's rent context.
func context(text string, start, end int) string {
	lo := start - 50
	if lo < 0 {
		lo = 0
	}
	hi := end + 50
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]
	rel := start - lo
	if i := strings.LastIndexAny(window[:rel], ".!?\n"); i >= 0 {
		window = window[i+1:]
		rel -= i + 1
	}
	relEnd := rel + (end - start)
	if i := strings.IndexAny(window[relEnd:], ".!?\n"); i >= 0 {
		window = window[:relEnd+i]
	}
	return window
}

func submatch(text string, idx []int, n int) string {
	if 2*n+1 >= len(idx) || idx[2*n] < 0 {
		return ""
	}
	return text[idx[2*n]:idx[2*n+1]]
}
