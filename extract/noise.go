package extract

import (
	"strings"
	"unicode/utf8"
)

// NoiseFilter rejects text that reads like a price tag or a promotional
// blurb rather than a category label. It is plain data so vendor profiles can
// extend it without touching the strategies.
type NoiseFilter struct {
	// Currency holds runes that never appear in a category.
	Currency string

	// Phrases are lowercase substrings that mark promotional copy.
	Phrases []string

	MinLen int
	MaxLen int
}

// DefaultNoise is the baseline filter shared by all profiles.
var DefaultNoise = NoiseFilter{
	Currency: "$€£¥₹₩₽¢",
	Phrases: []string{
		"% off", "sale", "discount", "free shipping", "free delivery",
		"buy now", "shop now", "add to cart", "add to bag", "limited time",
		"offer", "promo", "newsletter", "sign up", "subscribe", " only ",
		" was ", " now ", " save ", " from ", "price", "voucher", "coupon",
		"click", "http", "www.",
	},
	MinLen: 3,
	MaxLen: 60,
}

// With returns a copy of the filter with extra phrases appended.
func (f NoiseFilter) With(phrases ...string) NoiseFilter {
	out := f
	out.Phrases = make([]string, 0, len(f.Phrases)+len(phrases))
	out.Phrases = append(out.Phrases, f.Phrases...)
	for _, p := range phrases {
		out.Phrases = append(out.Phrases, strings.ToLower(p))
	}
	return out
}

// Noisy reports whether text should be rejected as a category.
func (f NoiseFilter) Noisy(text string) bool {
	t := collapseSpace(text)
	n := utf8.RuneCountInString(t)
	if n < f.MinLen || (f.MaxLen > 0 && n > f.MaxLen) {
		return true
	}
	if f.Currency != "" && strings.ContainsAny(t, f.Currency) {
		return true
	}
	lower := " " + strings.ToLower(t) + " "
	for _, p := range f.Phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
