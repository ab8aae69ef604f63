package extract

import (
	"strings"
	"unicode"
)

// keywordRule yields Category when every keyword in All occurs in the text as
// a whole word (simple plurals allowed).
type keywordRule struct {
	All      []string
	Category string
}

// keywordRules is ordered most-specific first; the first matching rule wins.
var keywordRules = []keywordRule{
	{[]string{"non wired", "bra"}, "Non-wired bra"},
	{[]string{"wireless", "bra"}, "Non-wired bra"},
	{[]string{"wire free", "bra"}, "Non-wired bra"},
	{[]string{"padded", "bra"}, "Padded bra"},
	{[]string{"push up", "bra"}, "Padded bra"},
	{[]string{"sports", "bra"}, "Sports bra"},
	{[]string{"sport", "bra"}, "Sports bra"},
	{[]string{"underwired", "bra"}, "Wired bra"},
	{[]string{"underwire", "bra"}, "Wired bra"},
	{[]string{"wired", "bra"}, "Wired bra"},
	{[]string{"wirefree", "bra"}, "Non-wired bra"},
	{[]string{"bralette"}, "Bralette"},
	{[]string{"bra"}, "Bra"},
	{[]string{"brassiere"}, "Bra"},
	{[]string{"hipster"}, "Hipster"},
	{[]string{"brief"}, "Briefs"},
	{[]string{"tai"}, "Knickers"},
	{[]string{"knicker"}, "Knickers"},
	{[]string{"panties"}, "Knickers"},
	{[]string{"panty"}, "Knickers"},
	{[]string{"shorts"}, "Hipster"},
	{[]string{"thong"}, "String"},
	{[]string{"string"}, "String"},
	{[]string{"bodysuit"}, "Body"},
	{[]string{"body suit"}, "Body"},
	{[]string{"bodies"}, "Body"},
	{[]string{"swimsuit"}, "Swimsuit"},
	{[]string{"swimming costume"}, "Swimsuit"},
	{[]string{"bikini"}, "Bikini"},
	{[]string{"nightdress"}, "Nightdress"},
	{[]string{"nightie"}, "Nightdress"},
	{[]string{"nightgown"}, "Nightdress"},
	{[]string{"pyjama"}, "Pyjamas"},
	{[]string{"pajama"}, "Pyjamas"},
	{[]string{"pjs"}, "Pyjamas"},
	{[]string{"body"}, "Body"},
	{[]string{"reggiseno"}, "Reggiseno"},
	{[]string{"reggiseni"}, "Reggiseno"},
}

// MatchKeywords returns the canonical category when text is exactly a known
// label, otherwise the category of the first rule matching text.
func MatchKeywords(text string) (string, bool) {
	if c, ok := canonicalCategories[strings.ToLower(collapseSpace(text))]; ok {
		return c, true
	}
	padded := " " + wordText(text) + " "
	if strings.TrimSpace(padded) == "" {
		return "", false
	}
	for _, r := range keywordRules {
		if r.matches(padded) {
			return r.Category, true
		}
	}
	return "", false
}

func (r keywordRule) matches(padded string) bool {
	for _, kw := range r.All {
		if !containsWord(padded, kw) {
			return false
		}
	}
	return true
}

func containsWord(padded, kw string) bool {
	for _, form := range []string{kw, kw + "s", kw + "es"} {
		if strings.Contains(padded, " "+form+" ") {
			return true
		}
	}
	return false
}

// wordText lowercases s and replaces every non-alphanumeric rune with a
// single space, so "Non-Wired Bra!" becomes "non wired bra".
func wordText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
