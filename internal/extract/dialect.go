package extract

// Dialect is one markdown convention variant. Dispatch walks the ordered
// dialects list (most specific first) and uses the first CanHandle match;
// the generic dialect always accepts, so dispatch never falls through.
type Dialect interface {
	Name() string
	CanHandle(path string, raw []byte) bool
	Parse(raw []byte) *Document
}

// dialects is the fixed dispatch order. No runtime registration: variants
// are closed over at startup.
var dialects = []Dialect{
	noteApp{},
	staticSite{},
	wikiLink{},
	generic{},
}

// DialectNames returns the dispatch order, most specific first.
func DialectNames() []string {
	out := make([]string, len(dialects))
	for i, d := range dialects {
		out[i] = d.Name()
	}
	return out
}
