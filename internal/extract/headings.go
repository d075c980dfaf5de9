package extract

import (
	"regexp"
	"strings"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

// collectHeadings returns every ATX heading outside fenced code blocks.
func collectHeadings(body string) []Heading {
	var out []Heading
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			out = append(out, Heading{Level: len(m[1]), Text: m[2]})
		}
	}
	return out
}

// countWords counts whitespace-separated tokens in the body.
func countWords(body string) int {
	return len(strings.Fields(body))
}

// deriveTitle prefers the frontmatter title, then the first H1, then empty.
func deriveTitle(fields []Field, headings []Heading) string {
	if t := fieldString(fields, "title"); t != "" {
		return t
	}
	for _, h := range headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
