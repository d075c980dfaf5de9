package extract

// generic handles plain markdown with optional YAML frontmatter. It is the
// dispatch fallback and must accept anything.
type generic struct{}

func (generic) Name() string { return "generic" }

func (generic) CanHandle(string, []byte) bool { return true }

func (generic) Parse(raw []byte) *Document {
	fields, body, warning := splitYAML(raw)
	return assemble(fields, body, warning, linkOpts{}, false)
}

// assemble runs the shared body pipeline with the dialect's link options.
func assemble(fields []Field, body, warning string, lo linkOpts, nestedAsDialect bool) *Document {
	headings := collectHeadings(body)
	doc := &Document{
		Body:        body,
		Frontmatter: fields,
		Headings:    headings,
		Tags:        collectTags(fields, body, nestedAsDialect),
		Links:       collectLinks(body, lo),
		Title:       deriveTitle(fields, headings),
		WordCount:   countWords(body),
	}
	if warning != "" {
		doc.Warnings = append(doc.Warnings, warning)
	}
	return doc
}
