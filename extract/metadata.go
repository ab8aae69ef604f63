package extract

// Title returns the best-effort page title: <title>, then the first <h1>,
// then og:title.
func Title(p *Page) string {
	if t := collapseSpace(p.Doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := collapseSpace(p.Doc.Find("h1").First().Text()); t != "" {
		return t
	}
	if og := p.OpenGraph(); og != nil {
		return collapseSpace(og.Title)
	}
	return ""
}

// Description returns the meta description, falling back to og:description.
func Description(p *Page) string {
	if d := p.metaContent("description"); d != "" {
		return collapseSpace(d)
	}
	if og := p.OpenGraph(); og != nil {
		return collapseSpace(og.Description)
	}
	return ""
}
