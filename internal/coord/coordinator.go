// Package coord arbitrates concurrent indexing and querying over one store:
// one active writer, a bounded query pool, generation-checked caching, and
// the corruption-recovery state machine.
package coord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/indexer"
	"github.com/starford/ansuz/internal/query"
	"github.com/starford/ansuz/internal/source"
	"github.com/starford/ansuz/internal/store"
)

// Health is the coordinator's view of store health.
type Health int32

const (
	Healthy Health = iota
	Recovering
	Unrecoverable
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Recovering:
		return "recovering"
	default:
		return "unrecoverable"
	}
}

// EventFunc receives coordinator lifecycle events for broadcast (SSE etc.).
type EventFunc func(kind string, data any)

// Coordinator owns the shared store on behalf of all clients.
type Coordinator struct {
	st     *store.Store
	src    source.Provider
	engine *query.Engine
	cache  *cache.Cache
	logger *slog.Logger

	// writeMu serializes index runs in-process; lock serializes them across
	// processes sharing the store file.
	writeMu sync.Mutex
	lock    *flock.Flock

	// sem bounds concurrent query execution.
	sem     *semaphore.Weighted
	workers int

	health atomic.Int32

	// OnEvent, when set, receives index lifecycle events.
	OnEvent EventFunc
}

// Options configure a Coordinator.
type Options struct {
	// PoolSize bounds concurrent queries; <=0 means 16.
	PoolSize int
	// Workers bounds extraction parallelism inside one index run.
	Workers int
}

// New wires a coordinator over an open store.
func New(st *store.Store, src source.Provider, engine *query.Engine, c *cache.Cache, logger *slog.Logger, opts Options) *Coordinator {
	pool := opts.PoolSize
	if pool <= 0 {
		pool = 16
	}
	return &Coordinator{
		st:      st,
		src:     src,
		engine:  engine,
		cache:   c,
		logger:  logger,
		lock:    flock.New(st.Path() + ".lock"),
		sem:     semaphore.NewWeighted(int64(pool)),
		workers: opts.Workers,
	}
}

// Health returns the current store health.
func (c *Coordinator) Health() Health {
	return Health(c.health.Load())
}

// Generation exposes the store's generation counter.
func (c *Coordinator) Generation() uint64 {
	return c.st.Generation()
}

// lockRetry is the bounded backoff schedule for cross-process writer-lock
// contention.
var lockRetry = struct {
	attempts int
	initial  time.Duration
	max      time.Duration
}{attempts: 5, initial: 100 * time.Millisecond, max: 2 * time.Second}

// acquireWriteLock takes the cross-process lock with bounded retry/backoff.
func (c *Coordinator) acquireWriteLock(ctx context.Context) error {
	delay := lockRetry.initial
	for attempt := 0; attempt < lockRetry.attempts; attempt++ {
		ok, err := c.lock.TryLock()
		if err != nil {
			return &apperr.StorageError{Locked: true, Cause: err}
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > lockRetry.max {
			delay = lockRetry.max
		}
	}
	return &apperr.StorageError{Locked: true, Cause: fmt.Errorf("writer lock held after %d attempts", lockRetry.attempts)}
}

// Index runs one serialized index run. Concurrent callers queue behind the
// in-process mutex; other processes are excluded by the file lock.
func (c *Coordinator) Index(ctx context.Context, opts indexer.Options) (*indexer.Report, error) {
	if c.Health() == Unrecoverable {
		return nil, apperr.ErrUnrecoverable
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.acquireWriteLock(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock() //nolint:errcheck

	if opts.Workers <= 0 {
		opts.Workers = c.workers
	}
	c.emit("index.started", map[string]any{"dir": opts.Dir, "force": opts.Force})

	report, err := indexer.Run(ctx, c.st, c.src, c.logger, opts)
	if err != nil {
		if apperr.IsCorruption(err) {
			return nil, c.recover(ctx)
		}
		return nil, err
	}
	c.emit("index.completed", map[string]any{
		"created":    report.Created,
		"updated":    report.Updated,
		"deleted":    report.Deleted,
		"generation": c.st.Generation(),
	})
	return report, nil
}

// Rebuild discards the index and reprocesses the whole collection.
func (c *Coordinator) Rebuild(ctx context.Context) (*indexer.Report, error) {
	if c.Health() == Unrecoverable {
		return nil, apperr.ErrUnrecoverable
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.acquireWriteLock(ctx); err != nil {
		return nil, err
	}
	defer c.lock.Unlock() //nolint:errcheck

	c.emit("index.started", map[string]any{"rebuild": true})
	report, err := indexer.Rebuild(ctx, c.st, c.src, c.logger, c.workers)
	if err != nil {
		return nil, err
	}
	c.emit("index.completed", map[string]any{
		"created":    report.Created,
		"generation": c.st.Generation(),
	})
	return report, nil
}

// Query executes a read-only query through the cache and the bounded worker
// pool. The second return reports a cache hit.
func (c *Coordinator) Query(ctx context.Context, sqlText string, params []any, limit int, timeout time.Duration) (*query.Result, bool, error) {
	switch c.Health() {
	case Unrecoverable:
		return nil, false, apperr.ErrUnrecoverable
	case Recovering:
		return nil, false, &apperr.StorageError{Locked: true, Cause: fmt.Errorf("store is recovering")}
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, false, err
	}
	defer c.sem.Release(1)

	fp := cache.Fingerprint(sqlText, params, limit)

	// Capture the generation before executing: a commit landing mid-query
	// leaves the stored entry stale instead of wrong.
	gen := c.st.Generation()
	if result, ok := c.cache.Lookup(fp, gen); ok {
		return result, true, nil
	}

	result, err := c.engine.Execute(ctx, sqlText, params, limit, timeout)
	if err != nil {
		c.checkForCorruption(ctx, err)
		return nil, false, err
	}
	c.cache.Store(fp, gen, result)
	return result, false, nil
}

// Fuzzy runs a fuzzy content match through the worker pool.
func (c *Coordinator) Fuzzy(ctx context.Context, term string, fields []string, threshold float64, topN int) ([]query.FuzzyMatch, error) {
	switch c.Health() {
	case Unrecoverable:
		return nil, apperr.ErrUnrecoverable
	case Recovering:
		return nil, &apperr.StorageError{Locked: true, Cause: fmt.Errorf("store is recovering")}
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)
	return c.engine.FuzzySearch(ctx, term, fields, threshold, topN)
}

// Schema describes the queryable surface.
func (c *Coordinator) Schema(withCounts bool) (*store.SchemaDescription, error) {
	if c.Health() == Unrecoverable {
		return nil, apperr.ErrUnrecoverable
	}
	return c.st.DescribeSchema(withCounts)
}

// checkForCorruption probes store integrity after a non-timeout execution
// fault and kicks off recovery when the file is damaged.
func (c *Coordinator) checkForCorruption(ctx context.Context, execErr error) {
	if apperr.IsTimeout(execErr) {
		return
	}
	if err := c.st.CheckIntegrity(ctx); apperr.IsCorruption(err) {
		c.logger.Error("coord: corruption detected", slog.String("error", err.Error()))
		c.health.Store(int32(Recovering))
		go func() {
			// Recovery owns the writer lock; queries fail fast meanwhile.
			_ = c.recoverLocked(context.Background())
		}()
	}
}

// recover runs the recovery procedure; the caller must hold writeMu.
func (c *Coordinator) recover(ctx context.Context) error {
	c.health.Store(int32(Recovering))
	c.emit("store.recovering", nil)
	c.logger.Warn("coord: entering recovery")

	// First: structural repair in place.
	if err := c.st.Repair(ctx); err == nil {
		c.health.Store(int32(Healthy))
		c.cache.Purge()
		c.logger.Info("coord: repaired in place")
		c.emit("store.recovered", map[string]any{"method": "repair"})
		return nil
	}

	// Second: discard and rebuild from source files.
	if err := c.st.Reopen(ctx); err != nil {
		c.health.Store(int32(Unrecoverable))
		c.emit("store.unrecoverable", nil)
		return apperr.ErrUnrecoverable
	}
	if _, err := indexer.Rebuild(ctx, c.st, c.src, c.logger, c.workers); err != nil {
		c.health.Store(int32(Unrecoverable))
		c.emit("store.unrecoverable", nil)
		return apperr.ErrUnrecoverable
	}
	c.health.Store(int32(Healthy))
	c.cache.Purge()
	c.logger.Info("coord: rebuilt from source")
	c.emit("store.recovered", map[string]any{"method": "rebuild"})
	return nil
}

// recoverLocked takes the writer locks before recovering, for paths that do
// not already hold them.
func (c *Coordinator) recoverLocked(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.Health() == Healthy {
		return nil // another caller recovered first
	}
	return c.recover(ctx)
}

// CheckIntegrity runs an on-demand integrity probe, entering recovery when
// it fails.
func (c *Coordinator) CheckIntegrity(ctx context.Context) error {
	err := c.st.CheckIntegrity(ctx)
	if err == nil {
		return nil
	}
	if apperr.IsCorruption(err) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		c.health.Store(int32(Recovering))
		return c.recover(ctx)
	}
	return err
}

func (c *Coordinator) emit(kind string, data any) {
	if c.OnEvent != nil {
		c.OnEvent(kind, data)
	}
}
