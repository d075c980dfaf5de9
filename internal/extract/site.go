package extract

import "bytes"

// staticSite handles static-site-generator markdown: TOML (+++) or JSON ({)
// frontmatter with standard markdown links.
type staticSite struct{}

func (staticSite) Name() string { return "staticsite" }

func (staticSite) CanHandle(_ string, raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, "\n\r \t")
	return bytes.HasPrefix(trimmed, []byte("+++")) || bytes.HasPrefix(trimmed, []byte("{"))
}

func (staticSite) Parse(raw []byte) *Document {
	trimmed := bytes.TrimLeft(raw, "\n\r \t")

	var (
		fields  []Field
		body    string
		warning string
	)
	if bytes.HasPrefix(trimmed, []byte("+++")) {
		fields, body, warning = splitTOML(raw)
	} else {
		fields, body, warning = splitJSON(raw)
	}
	return assemble(fields, body, warning, linkOpts{}, false)
}
