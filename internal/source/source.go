// Package source defines the read-only collection file-system abstraction
// used by the indexer and the recovery rebuild.
package source

import (
	"time"
)

// FileMeta describes one markdown file on disk. Size and ModTime feed the
// indexer's cheap change check; content is read separately.
type FileMeta struct {
	Path    string // relative to the collection root
	Size    int64
	ModTime time.Time
}

// Provider is the interface for collection file access.
type Provider interface {
	// List returns metadata for every markdown file under dir (relative to
	// the root). When recursive is false only the top level is scanned.
	List(dir string, recursive bool) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Root returns the absolute collection root.
	Root() string
}
