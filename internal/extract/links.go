package extract

import (
	"regexp"
	"strings"
)

var (
	// [text](target) but not ![text](target); images are embeds.
	inlineLinkRe = regexp.MustCompile(`(^|[^!\\])\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	imageLinkRe  = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)[^)]*\)`)
	// [text][label] shorthand plus its [label]: target definition line.
	refLinkRe = regexp.MustCompile(`\[([^\]]+)\]\[([^\]]*)\]`)
	refDefRe  = regexp.MustCompile(`(?m)^\s*\[([^\]]+)\]:\s*(\S+)`)
	wikiRe    = regexp.MustCompile(`(^|[^!])\[\[([^\]]+)\]\]`)
	embedRe   = regexp.MustCompile(`!\[\[([^\]]+)\]\]`)
	// No ( in the prefix class: URLs inside [text](url) are inline links,
	// not autolinks.
	bareURLRe = regexp.MustCompile(`(?:^|[\s<])((?:https?|ftp)://[^\s<>)\]"']+)`)
	schemeRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

type linkOpts struct {
	wikilinks bool
	embeds    bool
}

// collectLinks extracts every link form enabled by opts, deduplicated on
// (target, kind). Targets are recorded as written; nothing is resolved.
func collectLinks(body string, opts linkOpts) []Link {
	type key struct {
		target string
		kind   LinkKind
	}
	seen := make(map[key]struct{})
	var out []Link

	add := func(text, target string, kind LinkKind) {
		target = strings.TrimSpace(target)
		if target == "" {
			return
		}
		k := key{target, kind}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, Link{
			Text:     strings.TrimSpace(text),
			Target:   target,
			Kind:     kind,
			Internal: !schemeRe.MatchString(target),
		})
	}

	stripped := stripCodeBlocks(body)

	if opts.embeds {
		for _, m := range embedRe.FindAllStringSubmatch(stripped, -1) {
			target, text := splitAlias(m[1])
			add(text, target, KindEmbed)
		}
	}
	if opts.wikilinks {
		for _, m := range wikiRe.FindAllStringSubmatch(stripped, -1) {
			target, text := splitAlias(m[2])
			add(text, target, KindWikilink)
		}
	}

	for _, m := range inlineLinkRe.FindAllStringSubmatch(stripped, -1) {
		add(m[2], m[3], KindInline)
	}
	for _, m := range imageLinkRe.FindAllStringSubmatch(stripped, -1) {
		add(m[1], m[2], KindEmbed)
	}

	// Reference links need the definition block to resolve targets.
	defs := make(map[string]string)
	for _, m := range refDefRe.FindAllStringSubmatch(stripped, -1) {
		defs[strings.ToLower(m[1])] = m[2]
	}
	for _, m := range refLinkRe.FindAllStringSubmatch(stripped, -1) {
		label := m[2]
		if label == "" {
			label = m[1] // collapsed form [text][]
		}
		if target, ok := defs[strings.ToLower(label)]; ok {
			add(m[1], target, KindReference)
		}
	}

	for _, m := range bareURLRe.FindAllStringSubmatch(stripped, -1) {
		add("", strings.TrimRight(m[1], ".,;:"), KindAutolink)
	}

	return out
}

// splitAlias handles [[Target|Alias]]: returns the target and the alias (or
// the target when no alias is given).
func splitAlias(raw string) (target, text string) {
	if i := strings.Index(raw, "|"); i >= 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
	}
	raw = strings.TrimSpace(raw)
	return raw, raw
}
