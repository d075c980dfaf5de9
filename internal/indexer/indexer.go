// Package indexer walks the collection, detects changes, runs extraction,
// and commits results to the store one transaction per file.
package indexer

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/extract"
	"github.com/starford/ansuz/internal/source"
	"github.com/starford/ansuz/internal/store"
)

// Options control one index run.
type Options struct {
	// Dir restricts the run to a subdirectory of the collection ("" = all).
	Dir string
	// Recursive descends into subdirectories.
	Recursive bool
	// Force re-extracts every file regardless of stat and checksum state.
	Force bool
	// Workers bounds concurrent extraction; <=0 uses GOMAXPROCS.
	Workers int
}

// outcome is one file's result from the extraction stage, consumed by the
// serial commit loop.
type outcome struct {
	meta     source.FileMeta
	sum      string
	doc      *extract.Document
	existed  bool
	statOnly bool // checksum unchanged, refresh bookkeeping only
	err      error
}

// Run brings the store up to date with the collection.
//
// Extraction is pure and runs in parallel across files; commits are applied
// serially, one transaction per file, so cancellation lands between commits
// and never mid-commit. Already-committed files survive a cancelled run and
// are not reprocessed next time.
func Run(ctx context.Context, st *store.Store, src source.Provider, logger *slog.Logger, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{}

	// Traversal errors abort the run; they mean the caller gave us a bad
	// root or the filesystem is unwell.
	metas, err := src.List(opts.Dir, opts.Recursive)
	if err != nil {
		return nil, err
	}
	stored, err := st.AllMetas()
	if err != nil {
		return nil, err
	}

	report.FilesProcessed = len(metas)

	var work []source.FileMeta
	for _, m := range metas {
		prior, exists := stored[m.Path]
		if !opts.Force && exists && prior.Size == m.Size && prior.ModTime.Equal(m.ModTime) {
			report.FilesSkipped++
			continue
		}
		work = append(work, m)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outcomes := make(chan outcome, workers)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	go func() {
		for _, m := range work {
			m := m
			if gCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				outcomes <- extractOne(st, src, m, stored, opts.Force)
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	var cancelled bool
	for oc := range outcomes {
		if cancelled {
			continue // drain
		}
		if err := commitOne(st, logger, report, oc); err != nil {
			report.addFailure(oc.meta.Path, err)
			logger.Warn("index: commit failed",
				slog.String("path", oc.meta.Path),
				slog.String("error", err.Error()))
		}
		// Cancellation is honored between commits only.
		if ctx.Err() != nil {
			cancelled = true
		}
	}
	if cancelled || ctx.Err() != nil {
		report.Duration = time.Since(start)
		return report, ctx.Err()
	}

	// Tombstone pass: anything stored but not observed on this walk is gone
	// from disk. A partial walk only tombstones inside its subtree.
	observed := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		observed[m.Path] = struct{}{}
	}
	prefix := tombstonePrefix(opts.Dir)
	for p := range stored {
		if _, ok := observed[p]; ok {
			continue
		}
		if prefix != "" && !strings.HasPrefix(p, prefix) {
			continue
		}
		if !opts.Recursive && strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			continue
		}
		if err := st.DeleteDocument(p); err != nil {
			report.addFailure(p, err)
			logger.Warn("index: tombstone failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		report.Deleted++
		logger.Debug("index: removed stale", slog.String("path", p))
	}

	report.Duration = time.Since(start)
	logger.Info("index: run complete",
		slog.Int("processed", report.FilesProcessed),
		slog.Int("skipped", report.FilesSkipped),
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("deleted", report.Deleted),
		slog.Int("failures", len(report.Failures)),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// Rebuild clears the store and re-indexes the whole collection from scratch.
func Rebuild(ctx context.Context, st *store.Store, src source.Provider, logger *slog.Logger, workers int) (*Report, error) {
	if err := st.Reset(ctx); err != nil {
		return nil, err
	}
	return Run(ctx, st, src, logger, Options{Recursive: true, Force: true, Workers: workers})
}

// extractOne reads, hashes, and (when the content changed) extracts one
// file. Pure apart from the read; safe to run concurrently.
func extractOne(st *store.Store, src source.Provider, m source.FileMeta, stored map[string]store.DocMeta, force bool) outcome {
	oc := outcome{meta: m}
	prior, exists := stored[m.Path]
	oc.existed = exists

	data, err := src.Read(m.Path)
	if err != nil {
		oc.err = err
		return oc
	}
	oc.sum = checksum.Sum(data)

	// Touch-without-modify: mtime moved but bytes did not. Refresh the stat
	// bookkeeping and skip re-extraction.
	if !force && exists && prior.Checksum == oc.sum {
		oc.statOnly = true
		return oc
	}

	doc, err := extract.Extract(m.Path, data)
	if err != nil {
		oc.err = err
		return oc
	}
	oc.doc = doc
	return oc
}

// commitOne applies one extraction outcome to the store and updates the
// report counters.
func commitOne(st *store.Store, logger *slog.Logger, report *Report, oc outcome) error {
	if oc.err != nil {
		report.addFailure(oc.meta.Path, oc.err)
		logger.Warn("index: extraction failed",
			slog.String("path", oc.meta.Path),
			slog.String("error", oc.err.Error()))
		return nil
	}
	if oc.statOnly {
		report.FilesSkipped++
		return st.TouchDocument(oc.meta.Path, oc.meta.Size, oc.meta.ModTime)
	}

	for _, w := range oc.doc.Warnings {
		report.addWarning(oc.meta.Path, w)
		logger.Warn("index: extraction warning",
			slog.String("path", oc.meta.Path),
			slog.String("warning", w))
	}

	row := store.DocumentRow{
		Path:         oc.meta.Path,
		Filename:     filepath.Base(oc.meta.Path),
		Directory:    dirOf(oc.meta.Path),
		Size:         oc.meta.Size,
		ModifiedAt:   oc.meta.ModTime,
		Checksum:     oc.sum,
		WordCount:    oc.doc.WordCount,
		HeadingCount: len(oc.doc.Headings),
		IndexedAt:    time.Now().UTC(),
	}
	if !oc.existed {
		row.CreatedAt = time.Now().UTC()
	}
	if err := st.UpsertDocument(row, oc.doc); err != nil {
		return err
	}
	if oc.existed {
		report.Updated++
	} else {
		report.Created++
	}
	logger.Debug("index: committed",
		slog.String("path", oc.meta.Path),
		slog.String("dialect", oc.doc.Dialect))
	return nil
}

func dirOf(path string) string {
	d := filepath.ToSlash(filepath.Dir(path))
	if d == "." {
		return ""
	}
	return d
}

func tombstonePrefix(dir string) string {
	if dir == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.ToSlash(dir), "/") + "/"
}
