package store

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path          TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	directory     TEXT NOT NULL DEFAULT '',
	size          INTEGER NOT NULL DEFAULT 0,
	modified_at   DATETIME NOT NULL,
	created_at    DATETIME,
	checksum      TEXT NOT NULL DEFAULT '',
	word_count    INTEGER NOT NULL DEFAULT 0,
	heading_count INTEGER NOT NULL DEFAULT 0,
	indexed_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS frontmatter (
	path       TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL DEFAULT '',
	value_type TEXT NOT NULL DEFAULT 'string',
	PRIMARY KEY (path, key)
);

CREATE TABLE IF NOT EXISTS tags (
	path   TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	tag    TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT 'inline',
	PRIMARY KEY (path, tag, source)
);

CREATE TABLE IF NOT EXISTS links (
	path        TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	link_text   TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT 'inline',
	is_internal INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS content (
	path     TEXT PRIMARY KEY REFERENCES documents(path) ON DELETE CASCADE,
	title    TEXT NOT NULL DEFAULT '',
	body     TEXT NOT NULL DEFAULT '',
	headings TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tags_tag      ON tags(tag);
CREATE INDEX IF NOT EXISTS idx_links_target  ON links(target);
CREATE INDEX IF NOT EXISTS idx_fm_key        ON frontmatter(key);

CREATE VIEW IF NOT EXISTS tag_counts AS
	SELECT tag, COUNT(DISTINCT path) AS documents
	FROM tags GROUP BY tag;

CREATE VIEW IF NOT EXISTS link_targets AS
	SELECT target, COUNT(*) AS refs, MAX(is_internal) AS is_internal
	FROM links GROUP BY target;
`

// baseTables is the query allow-list shared by every build; the FTS table is
// appended when compiled in.
var baseTables = []string{
	"documents",
	"frontmatter",
	"tags",
	"links",
	"content",
	"tag_counts",
	"link_targets",
}

// AllowedTables returns every table and view a client query may reference.
func (s *Store) AllowedTables() []string {
	out := make([]string, len(baseTables))
	copy(out, baseTables)
	return append(out, ftsTables()...)
}
