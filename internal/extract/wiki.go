package extract

import "bytes"

// wikiLink handles markdown with [[Target|Alias]] cross-references and YAML
// frontmatter.
type wikiLink struct{}

func (wikiLink) Name() string { return "wikilink" }

func (wikiLink) CanHandle(_ string, raw []byte) bool {
	return bytes.Contains(raw, []byte("[["))
}

func (wikiLink) Parse(raw []byte) *Document {
	fields, body, warning := splitYAML(raw)
	return assemble(fields, body, warning, linkOpts{wikilinks: true}, false)
}
