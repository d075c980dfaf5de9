// Package extract turns raw markdown bytes into structured documents. All
// functions are pure: no I/O, no shared state, safe to call concurrently.
package extract

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ValueType classifies a frontmatter value.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeDate    ValueType = "date"
	TypeObject  ValueType = "object"
)

// TagSource records where a tag was found.
type TagSource string

const (
	SourceFrontmatter TagSource = "frontmatter"
	SourceInline      TagSource = "inline"
	SourceDialect     TagSource = "dialect"
)

// LinkKind distinguishes the syntactic form a link was written in.
type LinkKind string

const (
	KindInline    LinkKind = "inline"
	KindReference LinkKind = "reference"
	KindWikilink  LinkKind = "wikilink"
	KindEmbed     LinkKind = "embed"
	KindAutolink  LinkKind = "autolink"
)

// Field is one typed frontmatter entry.
type Field struct {
	Key   string
	Value any
	Type  ValueType
}

// Heading is one markdown heading with its level.
type Heading struct {
	Level int
	Text  string
}

// Tag is one normalized tag with its source.
type Tag struct {
	Value  string
	Source TagSource
}

// Link is one extracted link. Targets are not resolved against the
// collection; resolution is a query-time concern.
type Link struct {
	Text     string
	Target   string
	Kind     LinkKind
	Internal bool
}

// Document is the structured output of extraction for one file.
type Document struct {
	Title       string
	Body        string
	Dialect     string
	Frontmatter []Field
	Headings    []Heading
	Tags        []Tag
	Links       []Link
	WordCount   int
	// Warnings records non-fatal problems (e.g. malformed frontmatter).
	Warnings []string
}

// Extract parses raw bytes using the first dialect whose CanHandle accepts
// them. Undecodable bytes fail the file; a malformed frontmatter block only
// yields a warning and an empty frontmatter set.
func Extract(path string, raw []byte) (*Document, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("extract: %s: not valid UTF-8 text", path)
	}
	for _, d := range dialects {
		if d.CanHandle(path, raw) {
			doc := d.Parse(raw)
			doc.Dialect = d.Name()
			return doc, nil
		}
	}
	// Unreachable: the generic dialect accepts everything.
	doc := generic{}.Parse(raw)
	doc.Dialect = "generic"
	return doc, nil
}

// classify maps a decoded frontmatter value onto a ValueType.
func classify(v any) ValueType {
	switch t := v.(type) {
	case bool:
		return TypeBoolean
	case int, int64, uint64, float32, float64:
		return TypeNumber
	case time.Time:
		return TypeDate
	case []any:
		return TypeArray
	case map[string]any, map[any]any:
		return TypeObject
	case string:
		if looksLikeDate(t) {
			return TypeDate
		}
		return TypeString
	default:
		return TypeString
	}
}

// looksLikeDate accepts ISO-8601 dates and datetimes.
func looksLikeDate(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
