package extract

import "strings"

// canonicalCategories maps lowercase raw labels to canonical ones. Every
// canonical value also maps to itself, which keeps Normalize idempotent.
var canonicalCategories = buildCanonical(map[string][]string{
	"Bra":           {"bras", "brassiere", "brassieres"},
	"Non-wired bra": {"non-wired bras", "non wired bra", "non wired bras", "wireless bra", "wireless bras", "wire-free bra", "wirefree bra"},
	"Wired bra":     {"wired bras", "underwired bra", "underwired bras", "underwire bra", "underwire bras"},
	"Padded bra":    {"padded bras", "push-up bra", "push up bra", "push-up bras"},
	"Sports bra":    {"sports bras", "sport bra", "sport bras"},
	"Bralette":      {"bralettes"},
	"Briefs":        {"brief", "tai brief", "tai briefs", "maxi brief", "maxi briefs", "midi brief", "midi briefs"},
	"Knickers":      {"knicker", "tai knickers", "tai knicker", "tai", "panties", "panty"},
	"Hipster":       {"hipsters", "hipster briefs", "shorts"},
	"String":        {"strings", "thong", "thongs", "g-string", "g-strings"},
	"Body":          {"bodies", "bodysuit", "bodysuits", "body suit"},
	"Swimsuit":      {"swimsuits", "swimming costume", "one-piece swimsuit"},
	"Bikini":        {"bikinis", "bikini top", "bikini bottom", "bikini set"},
	"Nightdress":    {"nightdresses", "nightie", "nighties", "nightgown"},
	"Pyjamas":       {"pyjama", "pajamas", "pajama", "pyjama set", "pjs"},
	"Reggiseno":     {"reggiseni"},
})

func buildCanonical(groups map[string][]string) map[string]string {
	out := make(map[string]string)
	for canonical, aliases := range groups {
		out[strings.ToLower(canonical)] = canonical
		for _, a := range aliases {
			out[a] = canonical
		}
	}
	return out
}

// Normalize maps raw onto the canonical category vocabulary. Whitespace is
// collapsed; unmapped input is returned with its case preserved.
func Normalize(raw string) string {
	s := collapseSpace(raw)
	if s == "" {
		return ""
	}
	if c, ok := canonicalCategories[strings.ToLower(s)]; ok {
		return c
	}
	return s
}
