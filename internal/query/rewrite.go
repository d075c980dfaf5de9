package query

import "regexp"

// whole-word LIKE pattern over a searchable content column, e.g.
// body LIKE '% alpha %'.
var likeWordRe = regexp.MustCompile(`(?i)\b(title|body|headings)\s+LIKE\s+'% ([A-Za-z0-9]+) %'`)

// rewriteForFTS prefilters whole-word LIKE scans over the content table with
// an FTS match. The original LIKE predicate is kept, so the result set is
// identical: any row matching LIKE '% w %' contains the token w, making the
// FTS candidate set a superset. Patterns without space padding could match
// inside larger tokens and are left untouched.
//
// Applies only to single-table queries over content, where the bare path
// column is unambiguous.
func rewriteForFTS(sqlText string) string {
	masked := maskStrings(sqlText)
	if len(joinRe.FindAllString(masked, -1)) != 0 {
		return sqlText
	}
	refs := referencedTables(masked)
	if len(refs) != 1 || refs[0] != "content" {
		return sqlText
	}

	return likeWordRe.ReplaceAllString(sqlText,
		`(path IN (SELECT path FROM content_fts WHERE content_fts MATCH '"$2"') AND $1 LIKE '% $2 %')`)
}
