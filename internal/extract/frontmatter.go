package extract

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// splitYAML separates a leading YAML block (between --- delimiters) from the
// body. A malformed block is consumed and reported as a warning so the rest
// of the document still indexes.
func splitYAML(raw []byte) (fields []Field, body string, warning string) {
	block, rest, found := cutDelimited(raw, "---")
	if !found {
		return nil, string(raw), ""
	}
	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, rest, "malformed YAML frontmatter: " + err.Error()
	}
	return normalizeFields(fm), rest, ""
}

// splitTOML handles +++ delimited TOML frontmatter (static-site convention).
func splitTOML(raw []byte) (fields []Field, body string, warning string) {
	block, rest, found := cutDelimited(raw, "+++")
	if !found {
		return nil, string(raw), ""
	}
	var fm map[string]any
	if err := toml.Unmarshal(block, &fm); err != nil {
		return nil, rest, "malformed TOML frontmatter: " + err.Error()
	}
	return normalizeFields(fm), rest, ""
}

// splitJSON handles a leading JSON object as frontmatter (static-site
// convention). The object must start at the first byte and be balanced.
func splitJSON(raw []byte) (fields []Field, body string, warning string) {
	trimmed := bytes.TrimLeft(raw, "\n\r \t")
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return nil, string(raw), ""
	}
	end := balancedObjectEnd(trimmed)
	if end < 0 {
		return nil, string(raw), "unterminated JSON frontmatter"
	}
	var fm map[string]any
	if err := json.Unmarshal(trimmed[:end+1], &fm); err != nil {
		return nil, strings.TrimLeft(string(trimmed[end+1:]), "\n\r"), "malformed JSON frontmatter: " + err.Error()
	}
	return normalizeFields(fm), strings.TrimLeft(string(trimmed[end+1:]), "\n\r"), ""
}

// cutDelimited extracts the block between a leading delimiter line and its
// closing counterpart. found is false when the document has no such block;
// the caller then treats everything as body.
func cutDelimited(raw []byte, delim string) (block []byte, body string, found bool) {
	trimmed := bytes.TrimLeft(raw, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(raw), false
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(raw), false
	}
	after := rest[idx+1+len(delim):]
	return rest[:idx], strings.TrimLeft(string(after), "\n\r"), true
}

// balancedObjectEnd returns the index of the brace closing the object that
// starts at b[0], skipping string literals, or -1.
func balancedObjectEnd(b []byte) int {
	depth := 0
	inStr := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inStr {
			switch c {
			case '\\':
				i++
			case '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// normalizeFields flattens a decoded frontmatter map into typed fields with
// a stable key order.
func normalizeFields(fm map[string]any) []Field {
	if len(fm) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fm))
	for k := range fm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Field, 0, len(keys))
	for _, k := range keys {
		v := fm[k]
		out = append(out, Field{Key: k, Value: v, Type: classify(v)})
	}
	return out
}

// fieldString returns the string value of a frontmatter key, if present.
func fieldString(fields []Field, key string) string {
	for _, f := range fields {
		if f.Key == key {
			if s, ok := f.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// fieldStrings returns the string items of an array-valued frontmatter key.
// A bare string value is treated as a single-item list.
func fieldStrings(fields []Field, key string) []string {
	for _, f := range fields {
		if f.Key != key {
			continue
		}
		switch v := f.Value.(type) {
		case string:
			if v != "" {
				return []string{v}
			}
		case []any:
			var out []string
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}
