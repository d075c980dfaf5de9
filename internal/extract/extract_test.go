package extract

import (
	"strings"
	"testing"
)

func TestExtract_YAMLFrontmatterAndBody(t *testing.T) {
	raw := []byte("---\ntitle: Hello\ntags:\n  - go\n  - notes\ndraft: false\nrating: 4\n---\n# Hello\nBody text.\n")
	doc, err := Extract("hello.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Hello" {
		t.Errorf("title = %q, want %q", doc.Title, "Hello")
	}
	if doc.Dialect != "generic" {
		t.Errorf("dialect = %q, want generic", doc.Dialect)
	}
	got := map[string]ValueType{}
	for _, f := range doc.Frontmatter {
		got[f.Key] = f.Type
	}
	if got["draft"] != TypeBoolean {
		t.Errorf("draft type = %q, want boolean", got["draft"])
	}
	if got["rating"] != TypeNumber {
		t.Errorf("rating type = %q, want number", got["rating"])
	}
	if got["tags"] != TypeArray {
		t.Errorf("tags type = %q, want array", got["tags"])
	}
}

func TestExtract_NoFrontmatter(t *testing.T) {
	doc, err := Extract("plain.md", []byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Frontmatter) != 0 {
		t.Errorf("expected no frontmatter, got %v", doc.Frontmatter)
	}
	if doc.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", doc.Title, "Just a heading")
	}
}

func TestExtract_MalformedFrontmatterWarns(t *testing.T) {
	raw := []byte("---\n: invalid: yaml: {{{\n---\n# Body Heading\nBody\n")
	doc, err := Extract("bad.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Frontmatter) != 0 {
		t.Errorf("expected empty frontmatter, got %v", doc.Frontmatter)
	}
	if len(doc.Warnings) == 0 {
		t.Fatal("expected a warning for malformed frontmatter")
	}
	// The malformed block must be consumed, not treated as body.
	if strings.Contains(doc.Body, "invalid: yaml") {
		t.Errorf("malformed block leaked into body: %q", doc.Body)
	}
	if doc.Title != "Body Heading" {
		t.Errorf("title = %q, want %q", doc.Title, "Body Heading")
	}
}

func TestExtract_InvalidUTF8Fails(t *testing.T) {
	if _, err := Extract("bin.md", []byte{0xff, 0xfe, 0x00}); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestExtract_DialectDispatch(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		dialect string
	}{
		{"embed selects noteapp", "Some text with ![[attachment.png]] inside.", "noteapp"},
		{"wikilink selects wikilink", "See [[Other Note]] for details.", "wikilink"},
		{"toml fences select staticsite", "+++\ntitle = \"Post\"\n+++\nBody.", "staticsite"},
		{"json object selects staticsite", "{\n  \"title\": \"Post\"\n}\nBody.", "staticsite"},
		{"plain markdown selects generic", "# Title\nNothing fancy.", "generic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Extract("doc.md", []byte(tc.raw))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.Dialect != tc.dialect {
				t.Errorf("dialect = %q, want %q", doc.Dialect, tc.dialect)
			}
		})
	}
}

func TestExtract_TOMLFrontmatter(t *testing.T) {
	raw := []byte("+++\ntitle = \"TOML Post\"\ndraft = true\n+++\nContent here.\n")
	doc, err := Extract("post.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "TOML Post" {
		t.Errorf("title = %q, want %q", doc.Title, "TOML Post")
	}
	var draft *Field
	for i := range doc.Frontmatter {
		if doc.Frontmatter[i].Key == "draft" {
			draft = &doc.Frontmatter[i]
		}
	}
	if draft == nil || draft.Type != TypeBoolean {
		t.Errorf("draft field = %+v, want boolean", draft)
	}
}

func TestNormalizeTag(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Project Ideas", "project-ideas"},
		{"  TAG  ", "tag"},
		{"work//notes", "work/notes"},
		{"a/ /b", "a/b"},
		{"already-normal", "already-normal"},
	}
	for _, tc := range cases {
		if got := NormalizeTag(tc.in); got != tc.want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	// Idempotence.
	for _, tc := range cases {
		once := NormalizeTag(tc.in)
		if twice := NormalizeTag(once); twice != once {
			t.Errorf("NormalizeTag not stable: %q -> %q -> %q", tc.in, once, twice)
		}
	}
}

func TestCollectTags_SourcesAndDedup(t *testing.T) {
	raw := []byte("---\ntags: [alpha]\n---\nBody with #alpha and #beta here.\n")
	doc, err := Extract("t.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := map[string]TagSource{}
	for _, tag := range doc.Tags {
		found[tag.Value+"/"+string(tag.Source)] = tag.Source
	}
	if _, ok := found["alpha/frontmatter"]; !ok {
		t.Errorf("missing alpha from frontmatter: %v", doc.Tags)
	}
	if _, ok := found["alpha/inline"]; !ok {
		t.Errorf("missing alpha from inline: %v", doc.Tags)
	}
	if _, ok := found["beta/inline"]; !ok {
		t.Errorf("missing beta from inline: %v", doc.Tags)
	}
}

func TestCollectTags_CodeBlocksIgnored(t *testing.T) {
	body := "Real #tag here.\n```\n#not-a-tag\n```\n"
	doc, err := Extract("c.md", []byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tag := range doc.Tags {
		if tag.Value == "not-a-tag" {
			t.Errorf("tag extracted from code block: %v", doc.Tags)
		}
	}
	if len(doc.Tags) != 1 || doc.Tags[0].Value != "tag" {
		t.Errorf("tags = %v, want [tag]", doc.Tags)
	}
}

func TestCollectLinks_Forms(t *testing.T) {
	body := "Inline [text](https://example.com/page) and image ![alt](img.png).\n" +
		"Reference [ref][label] here.\n\n[label]: target.md\n" +
		"Bare https://bare.example.com too.\n"
	links := collectLinks(body, linkOpts{})
	byKind := map[LinkKind][]Link{}
	for _, l := range links {
		byKind[l.Kind] = append(byKind[l.Kind], l)
	}
	if n := len(byKind[KindInline]); n != 1 {
		t.Errorf("inline links = %d, want 1", n)
	}
	if n := len(byKind[KindEmbed]); n != 1 {
		t.Errorf("image embeds = %d, want 1", n)
	}
	if got := byKind[KindReference]; len(got) != 1 || got[0].Target != "target.md" {
		t.Errorf("reference links = %v, want one resolving to target.md", got)
	}
	if n := len(byKind[KindAutolink]); n != 1 {
		t.Errorf("autolinks = %d, want 1", n)
	}
}

func TestCollectLinks_InternalFlag(t *testing.T) {
	links := collectLinks("[a](notes/a.md) and [b](https://b.example.com)", linkOpts{})
	for _, l := range links {
		switch l.Target {
		case "notes/a.md":
			if !l.Internal {
				t.Errorf("%q should be internal", l.Target)
			}
		case "https://b.example.com":
			if l.Internal {
				t.Errorf("%q should be external", l.Target)
			}
		}
	}
}

func TestCollectLinks_WikilinkAlias(t *testing.T) {
	links := collectLinks("See [[Other Note|the alias]].", linkOpts{wikilinks: true})
	if len(links) != 1 {
		t.Fatalf("links = %v, want 1", links)
	}
	if links[0].Target != "Other Note" || links[0].Text != "the alias" {
		t.Errorf("link = %+v", links[0])
	}
	if links[0].Kind != KindWikilink || !links[0].Internal {
		t.Errorf("link = %+v, want internal wikilink", links[0])
	}
}

func TestCollectLinks_Dedup(t *testing.T) {
	links := collectLinks("[[A]] and [[A]] again", linkOpts{wikilinks: true})
	if len(links) != 1 {
		t.Errorf("links = %v, want deduplicated single entry", links)
	}
}

func TestHeadingsAndWordCount(t *testing.T) {
	raw := []byte("# Top\nSome words here.\n## Second level\nMore words.\n```\n# not a heading\n```\n")
	doc, err := Extract("h.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Headings) != 2 {
		t.Fatalf("headings = %v, want 2", doc.Headings)
	}
	if doc.Headings[0].Level != 1 || doc.Headings[0].Text != "Top" {
		t.Errorf("headings[0] = %+v", doc.Headings[0])
	}
	if doc.Headings[1].Level != 2 || doc.Headings[1].Text != "Second level" {
		t.Errorf("headings[1] = %+v", doc.Headings[1])
	}
	if doc.WordCount == 0 {
		t.Error("word count should be nonzero")
	}
}

func TestDeriveTitle_FrontmatterWins(t *testing.T) {
	raw := []byte("---\ntitle: FM Title\n---\n# H1 Title\n")
	doc, err := Extract("t.md", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "FM Title" {
		t.Errorf("title = %q, want FM Title", doc.Title)
	}
}

func TestClassify_DateStrings(t *testing.T) {
	if classify("2024-03-15") != TypeDate {
		t.Error("plain date string should classify as date")
	}
	if classify("2024-03-15T10:30:00Z") != TypeDate {
		t.Error("RFC3339 string should classify as date")
	}
	if classify("not a date") != TypeString {
		t.Error("arbitrary string should classify as string")
	}
}
