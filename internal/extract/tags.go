package extract

import (
	"regexp"
	"strings"
)

var (
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([\pL\d][\pL\d_/-]*)`)
	wsRunRe     = regexp.MustCompile(`\s+`)
)

// NormalizeTag case-folds a tag, collapses whitespace runs to single dashes,
// and strips empty hierarchy segments while preserving the / separator.
// Stable under repeated application.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = wsRunRe.ReplaceAllString(tag, "-")

	segs := strings.Split(tag, "/")
	kept := segs[:0]
	for _, s := range segs {
		s = strings.Trim(s, "-")
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}

// collectTags gathers frontmatter "tags" entries and inline #tags from the
// body. When nestedAsDialect is set, hierarchical inline tags are attributed
// to the dialect source instead of inline-content.
func collectTags(fields []Field, body string, nestedAsDialect bool) []Tag {
	type key struct {
		value  string
		source TagSource
	}
	seen := make(map[key]struct{})
	var out []Tag

	add := func(value string, source TagSource) {
		norm := NormalizeTag(value)
		if norm == "" {
			return
		}
		k := key{norm, source}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, Tag{Value: norm, Source: source})
	}

	for _, t := range fieldStrings(fields, "tags") {
		add(t, SourceFrontmatter)
	}

	stripped := stripCodeBlocks(body)
	for _, m := range inlineTagRe.FindAllStringSubmatch(stripped, -1) {
		source := SourceInline
		if nestedAsDialect && strings.Contains(m[1], "/") {
			source = SourceDialect
		}
		add(m[1], source)
	}
	return out
}

// stripCodeBlocks blanks fenced code blocks so their contents are not
// scanned for tags or headings.
func stripCodeBlocks(body string) string {
	lines := strings.Split(body, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			lines[i] = ""
			continue
		}
		if inFence {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
