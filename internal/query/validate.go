// Package query validates and executes the constrained read-only SQL
// surface exposed to clients.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/ansuz/internal/apperr"
)

// Limits bound the accepted query text as a defense against resource
// exhaustion. Zero values fall back to defaults.
type Limits struct {
	MaxLength int
	MaxJoins  int
}

const (
	DefaultMaxLength = 4096
	DefaultMaxJoins  = 8
)

// forbiddenVerbs are rejected anywhere in the statement, not just as the
// leading keyword. Conservative by design: a column named "delete" is
// rejected along with the verb. REPLACE is handled separately so the
// three-argument string function stays usable.
var forbiddenVerbs = []string{
	"insert", "update", "delete", "drop", "create", "alter",
	"attach", "detach", "pragma", "vacuum", "reindex",
	"truncate", "grant", "revoke",
}

var (
	fromRe      = regexp.MustCompile(`(?i)\bfrom\b`)
	joinTblRe   = regexp.MustCompile(`(?i)\bjoin\s+([A-Za-z_][A-Za-z0-9_]*)`)
	cteNameRe   = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+as\s*\(`)
	joinRe      = regexp.MustCompile(`(?i)\bjoin\b`)
	wordRe      = regexp.MustCompile(`(?i)\b[a-z_][a-z0-9_]*\b`)
	replaceRe   = regexp.MustCompile(`(?i)\breplace\b`)
	identAtRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	bareIdentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Validate rejects anything but a single read-only statement over the
// allow-listed tables. It runs before the SQLite parser ever sees the text
// and never touches the store.
func Validate(sqlText string, allowed []string, limits Limits) error {
	maxLen := limits.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	maxJoins := limits.MaxJoins
	if maxJoins <= 0 {
		maxJoins = DefaultMaxJoins
	}

	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return &apperr.ValidationError{Reason: "empty statement"}
	}
	if len(trimmed) > maxLen {
		return &apperr.ValidationError{
			Reason: "statement too long",
			Detail: fmt.Sprintf("%d bytes, limit %d", len(trimmed), maxLen),
		}
	}

	masked := maskStrings(trimmed)

	if strings.Contains(masked, "--") || strings.Contains(masked, "/*") {
		return &apperr.ValidationError{Reason: "comments are not permitted"}
	}

	// Single statement only: a trailing semicolon is tolerated, an interior
	// one is a separator.
	if i := strings.IndexByte(masked, ';'); i >= 0 {
		if strings.TrimSpace(masked[i+1:]) != "" {
			return &apperr.ValidationError{Reason: "multiple statements"}
		}
		masked = masked[:i]
	}

	// Identifier quoting ("name", `name`, [name]) is stripped so the keyword
	// and table scans see the real names. Quoting that hides anything other
	// than a plain identifier is rejected outright.
	masked, err := unquoteIdents(masked)
	if err != nil {
		return err
	}

	first := firstWord(masked)
	if first != "select" && first != "with" {
		return &apperr.ValidationError{
			Reason: "only SELECT statements are permitted",
			Detail: "got " + strings.ToUpper(first),
		}
	}
	if first == "with" && containsWord(masked, "recursive") {
		return &apperr.ValidationError{Reason: "recursive CTEs are not permitted"}
	}

	for _, verb := range forbiddenVerbs {
		if containsWord(masked, verb) {
			return &apperr.ValidationError{
				Reason: "forbidden keyword",
				Detail: strings.ToUpper(verb),
			}
		}
	}

	// REPLACE is only a write verb as a statement head (REPLACE INTO); as a
	// function call it is always followed by an open paren.
	for _, loc := range replaceRe.FindAllStringIndex(masked, -1) {
		if j := skipSpace(masked, loc[1]); j >= len(masked) || masked[j] != '(' {
			return &apperr.ValidationError{
				Reason: "forbidden keyword",
				Detail: "REPLACE",
			}
		}
	}

	if n := len(joinRe.FindAllString(masked, -1)); n > maxJoins {
		return &apperr.ValidationError{
			Reason: "too many joins",
			Detail: fmt.Sprintf("%d, limit %d", n, maxJoins),
		}
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[strings.ToLower(t)] = struct{}{}
	}
	// CTE names defined by the statement are legal reference targets.
	for _, m := range cteNameRe.FindAllStringSubmatch(masked, -1) {
		allowedSet[strings.ToLower(m[1])] = struct{}{}
	}
	for _, name := range referencedTables(masked) {
		if _, ok := allowedSet[name]; !ok {
			return &apperr.ValidationError{
				Reason: "table not allowed",
				Detail: name,
			}
		}
	}
	return nil
}

// maskStrings blanks single-quoted literals so keyword and separator scans
// cannot be fooled by string contents. Double quotes are identifier quoting
// in SQLite and are handled by unquoteIdents instead.
func maskStrings(s string) string {
	out := []byte(s)
	inString := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			if c == '\'' {
				// Doubled quote is an escaped literal quote.
				if i+1 < len(out) && out[i+1] == '\'' {
					out[i+1] = ' '
					i++
					continue
				}
				inString = false
			} else {
				out[i] = ' '
			}
			continue
		}
		if c == '\'' {
			inString = true
		}
	}
	return string(out)
}

// unquoteIdents rewrites quoted identifiers to their bare form. SQLite
// accepts three quoting styles ("name", `name`, [name]); all three must
// resolve to a plain name so the allow-list check sees the table actually
// referenced.
func unquoteIdents(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		var closing byte
		switch s[i] {
		case '"', '`':
			closing = s[i]
		case '[':
			closing = ']'
		default:
			b.WriteByte(s[i])
			i++
			continue
		}
		j := strings.IndexByte(s[i+1:], closing)
		if j < 0 {
			return "", &apperr.ValidationError{Reason: "unterminated quoted identifier"}
		}
		name := s[i+1 : i+1+j]
		if !bareIdentRe.MatchString(name) {
			return "", &apperr.ValidationError{
				Reason: "quoted identifier is not a plain name",
				Detail: name,
			}
		}
		b.WriteString(name)
		i += j + 2
	}
	return b.String(), nil
}

// referencedTables lists every table named by a FROM clause or a JOIN,
// including the trailing members of comma-separated FROM lists.
func referencedTables(masked string) []string {
	var names []string
	for _, loc := range fromRe.FindAllStringIndex(masked, -1) {
		i := loc[1]
		for {
			i = skipSpace(masked, i)
			if i < len(masked) && masked[i] == '(' {
				// Subquery: its own FROM is scanned by the outer loop. Skip
				// the balanced group so a comma after it is still seen.
				depth := 0
				for ; i < len(masked); i++ {
					if masked[i] == '(' {
						depth++
					} else if masked[i] == ')' {
						if depth--; depth == 0 {
							i++
							break
						}
					}
				}
			} else {
				m := identAtRe.FindString(masked[i:])
				if m == "" {
					break
				}
				names = append(names, strings.ToLower(m))
				i += len(m)
			}
			// Optional alias, with or without AS.
			i = skipSpace(masked, i)
			if m := identAtRe.FindString(masked[i:]); m != "" {
				i += len(m)
				if strings.EqualFold(m, "as") {
					i = skipSpace(masked, i)
					i += len(identAtRe.FindString(masked[i:]))
				}
			}
			i = skipSpace(masked, i)
			if i >= len(masked) || masked[i] != ',' {
				break
			}
			i++
		}
	}
	for _, m := range joinTblRe.FindAllStringSubmatch(masked, -1) {
		names = append(names, strings.ToLower(m[1]))
	}
	return names
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func firstWord(s string) string {
	m := wordRe.FindString(s)
	return strings.ToLower(m)
}

func containsWord(s, word string) bool {
	for _, m := range wordRe.FindAllString(s, -1) {
		if strings.EqualFold(m, word) {
			return true
		}
	}
	return false
}
