package extract

import "bytes"

// noteApp handles note-app markdown: ![[embeds]], [[wikilinks]], nested
// #parent/child tags, and YAML frontmatter with aliases.
type noteApp struct{}

func (noteApp) Name() string { return "noteapp" }

func (noteApp) CanHandle(_ string, raw []byte) bool {
	return bytes.Contains(raw, []byte("![["))
}

func (noteApp) Parse(raw []byte) *Document {
	fields, body, warning := splitYAML(raw)
	doc := assemble(fields, body, warning, linkOpts{wikilinks: true, embeds: true}, true)

	// Note apps treat frontmatter aliases as alternate titles; index them as
	// dialect tags so they stay queryable.
	for _, alias := range fieldStrings(fields, "aliases") {
		norm := NormalizeTag(alias)
		if norm == "" {
			continue
		}
		dup := false
		for _, t := range doc.Tags {
			if t.Value == norm && t.Source == SourceDialect {
				dup = true
				break
			}
		}
		if !dup {
			doc.Tags = append(doc.Tags, Tag{Value: norm, Source: SourceDialect})
		}
	}
	return doc
}
