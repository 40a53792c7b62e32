package directory

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy extracts one attribute from a page. Strategies are tried in order
// and the first one that succeeds wins.
type Strategy interface {
	Extract(doc *goquery.Document) (string, bool)
}

// SelectorStrategy reads the first element matching Selector and passes it
// through Clean.
type SelectorStrategy struct {
	Selector string
	Clean    func(sel *goquery.Selection) (string, bool)
}

// Extract implements Strategy.
func (s SelectorStrategy) Extract(doc *goquery.Document) (string, bool) {
	sel := doc.Find(s.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return s.Clean(sel)
}

const (
	minAddressLength = 6
	maxHoursLength   = 50
)

// AddressStrategies looks for an address block in priority order.
var AddressStrategies = []Strategy{
	SelectorStrategy{Selector: ".address", Clean: CleanAddress},
	SelectorStrategy{Selector: ".location-address", Clean: CleanAddress},
	SelectorStrategy{Selector: ".contact-address", Clean: CleanAddress},
}

// HoursStrategies looks for an hours block in priority order.
var HoursStrategies = []Strategy{
	SelectorStrategy{Selector: ".hours-container", Clean: CleanHours},
	SelectorStrategy{Selector: ".location-hours", Clean: CleanHours},
}

// CleanAddress drops links (map buttons) from the block and keeps the
// remaining text if it is long enough to be an address.
func CleanAddress(sel *goquery.Selection) (string, bool) {
	block := sel.Clone()
	block.Find("a").Remove()
	addr := text(block)
	addr = strings.ReplaceAll(addr, "Map & Directions", "")
	addr = strings.ReplaceAll(addr, "View Map", "")
	addr = strings.TrimSpace(addr)
	if len(addr) < minAddressLength {
		return "", false
	}
	return addr, true
}

// CleanHours strips the "Today's Hours" label and keeps the text before any
// "Standard" schedule, cut to a short display length.
func CleanHours(sel *goquery.Selection) (string, bool) {
	hours := strings.ReplaceAll(text(sel), "Today's Hours", "")
	hours, _, _ = strings.Cut(hours, "Standard")
	hours = strings.TrimSpace(hours)
	if r := []rune(hours); len(r) > maxHoursLength {
		hours = strings.TrimSpace(string(r[:maxHoursLength]))
	}
	if hours == "" {
		return "", false
	}
	return hours, true
}

// firstMatch returns the value of the first strategy that succeeds, or ""
// when none does.
func firstMatch(doc *goquery.Document, strategies []Strategy) string {
	for _, s := range strategies {
		if v, ok := s.Extract(doc); ok {
			return v
		}
	}
	return ""
}
