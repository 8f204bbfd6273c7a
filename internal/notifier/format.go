package notifier

import (
	"fmt"
	"strings"

	"github.com/PollyDrive/estate/internal/models"
)

// FormatMessage renders one listing as the chat message body. Unknown
// fields are omitted rather than shown as placeholders.
func FormatMessage(l *models.Listing) string {
	var b strings.Builder

	title := strings.TrimSpace(l.Title)
	if title == "" {
		title = "New listing"
	}
	b.WriteString("🏠 ")
	b.WriteString(title)
	b.WriteString("\n\n")

	if l.PriceExtracted != nil {
		fmt.Fprintf(&b, "💰 %s IDR/month", formatIDR(*l.PriceExtracted))
		if l.PriceAmbiguous {
			b.WriteString(" (several prices in the ad, check before booking)")
		}
		b.WriteString("\n")
	}
	if l.Bedrooms != nil {
		if *l.Bedrooms == 0 {
			b.WriteString("🛏 Studio\n")
		} else {
			fmt.Fprintf(&b, "🛏 %d bedroom(s)\n", *l.Bedrooms)
		}
	}
	if l.Location != nil {
		fmt.Fprintf(&b, "📍 %s\n", titleCase(*l.Location))
	}

	if details := formatDetails(l); details != "" {
		b.WriteString(details)
		b.WriteString("\n")
	}
	if amenities := formatAmenities(l); amenities != "" {
		b.WriteString(amenities)
		b.WriteString("\n")
	}
	if l.Phone != nil {
		fmt.Fprintf(&b, "📞 %s\n", *l.Phone)
	}
	if l.URL != "" {
		b.WriteString("\n")
		b.WriteString(l.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDetails(l *models.Listing) string {
	var parts []string
	if l.Kitchen != "" && l.Kitchen != models.KitchenUnknown {
		parts = append(parts, "kitchen: "+l.Kitchen)
	}
	if l.Furniture != "" && l.Furniture != models.FurnitureUnspecified {
		parts = append(parts, "furniture: "+l.Furniture)
	}
	if l.Utilities != "" && l.Utilities != models.UtilitiesUnspecified {
		parts = append(parts, "utilities "+l.Utilities)
	}
	if len(parts) == 0 {
		return ""
	}
	return "ℹ️ " + strings.Join(parts, ", ")
}

func formatAmenities(l *models.Listing) string {
	var parts []string
	if l.HasAC {
		parts = append(parts, "AC")
	}
	if l.HasWifi {
		parts = append(parts, "wifi")
	}
	if l.HasPool {
		parts = append(parts, "pool")
	}
	if l.HasParking {
		parts = append(parts, "parking")
	}
	if len(parts) == 0 {
		return ""
	}
	return "✅ " + strings.Join(parts, ", ")
}

// titleCase uppercases the first letter of each space-separated word.
// Built-in gazetteer names are already cased; this covers lowercase entries
// from a config-supplied gazetteer.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatIDR renders an amount with dot thousand separators, the local
// convention: 12000000 -> "12.000.000".
func formatIDR(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
