// Package syncstate keeps client-held views of the backend's collections
// consistent under polling, optimistic mutation and concurrent refetches.
//
// Each cached query key runs a small state machine:
//
//	empty → fetching → fresh → stale → fetching → fresh | error
//
// All read-modify-write of an entry happens under that entry's lock, and
// every fetch carries a monotonic sequence number so a fetch that resolves
// out of order is discarded instead of overwriting fresher state.
package syncstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// persistTTL bounds how long a persisted last-known value is kept for warm
// starts. In-memory staleness is governed separately by the stale window.
const persistTTL = 24 * time.Hour

// State is the lifecycle state of a cached query key.
type State string

const (
	StateEmpty    State = "empty"
	StateFetching State = "fetching"
	StateFresh    State = "fresh"
	StateStale    State = "stale"
	StateError    State = "error"
)

// FetchFunc loads the authoritative value for a key from the backend.
type FetchFunc func(ctx context.Context) (interface{}, error)

// DecodeFunc rebuilds a typed value from a persisted blob on warm start.
type DecodeFunc func(data []byte) (interface{}, error)

// OverlayFunc derives the optimistic value from the current cached value.
// It must return a new value and leave the input untouched, so the retained
// snapshot stays valid for rollback.
type OverlayFunc func(current interface{}) interface{}

type fetchResult struct {
	value interface{}
	err   error
}

type entry struct {
	mu sync.Mutex

	fetch  FetchFunc
	decode DecodeFunc

	state      State
	value      interface{}
	err        error
	updatedAt  time.Time
	optimistic bool

	// seq is the sequence of the newest issued fetch; appliedSeq the one
	// whose result is currently visible. A completing fetch with a sequence
	// below seq has been superseded and is dropped.
	seq        uint64
	appliedSeq uint64
	inflight   bool
	waiters    []chan fetchResult

	// mutMu serializes mutations so two optimistic overlays on the same key
	// cannot interleave their snapshots.
	mutMu sync.Mutex
}

// Cache is the synchronized query cache. Values are treated as immutable
// once stored; consumers receive the stored reference and must not modify it.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	staleAfter time.Duration
	store      *Store // optional persistence for warm starts
	log        zerolog.Logger
}

// New creates a cache. store may be nil to disable warm-start persistence.
func New(staleAfter time.Duration, store *Store, log zerolog.Logger) *Cache {
	return &Cache{
		entries:    make(map[string]*entry),
		staleAfter: staleAfter,
		store:      store,
		log:        log.With().Str("component", "syncstate").Logger(),
	}
}

// Register declares a query key with its fetcher. When a persisted value
// exists and decode is non-nil the key warm-starts as stale, so consumers
// see last-known data immediately while the first refetch runs.
func (c *Cache) Register(key string, fetch FetchFunc, decode DecodeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	e := &entry{fetch: fetch, decode: decode, state: StateEmpty}
	if c.store != nil && decode != nil {
		if data, err := c.store.Get(key); err == nil && data != nil {
			if value, err := decode(data); err == nil {
				e.value = value
				e.state = StateStale
				c.log.Debug().Str("key", key).Msg("Warm-started cache entry")
			}
		}
	}
	c.entries[key] = e
}

// Keys returns all registered query keys.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) entry(key string) (*entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("unknown cache key %q", key)
	}
	return e, nil
}

// Get returns the value for a key, fetching when the entry is not fresh.
// When a fetch fails but a previous value exists, that stale value is
// returned alongside the error so callers can degrade instead of aborting.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	e, err := c.entry(key)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if c.effectiveState(e) == StateFresh {
		value := e.value
		e.mu.Unlock()
		return value, nil
	}
	ch := c.awaitFetchLocked(key, e)
	e.mu.Unlock()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the current value and state without triggering a fetch.
func (c *Cache) Peek(key string) (interface{}, State, bool) {
	e, err := c.entry(key)
	if err != nil {
		return nil, StateEmpty, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, c.effectiveState(e), e.value != nil
}

// Refresh forces a refetch of a key, superseding any in-flight fetch.
// It returns once the newly issued fetch (or a later one) has applied.
func (c *Cache) Refresh(ctx context.Context, key string) error {
	e, err := c.entry(key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	ch := c.issueFetchLocked(key, e)
	e.mu.Unlock()

	select {
	case res := <-ch:
		return res.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate marks a key stale so the next read or poll cycle refetches it.
func (c *Cache) Invalidate(key string) {
	e, err := c.entry(key)
	if err != nil {
		return
	}

	e.mu.Lock()
	if e.state == StateFresh {
		e.state = StateStale
	}
	e.mu.Unlock()
}

// InvalidateAll marks every registered key stale.
func (c *Cache) InvalidateAll() {
	for _, key := range c.Keys() {
		c.Invalidate(key)
	}
}

// Mutate applies an optimistic overlay, runs the backend mutation, and
// either invalidates the key (success) or rolls the entry back to the exact
// pre-mutation snapshot (failure). The overlay is visible to readers while
// the mutation is in flight; issuing it also supersedes any in-flight fetch
// so a concurrent refetch cannot clobber the overlay.
func (c *Cache) Mutate(ctx context.Context, key string, overlay OverlayFunc, mutation func(ctx context.Context) error) error {
	e, err := c.entry(key)
	if err != nil {
		return err
	}

	e.mutMu.Lock()
	defer e.mutMu.Unlock()

	e.mu.Lock()
	snapshotValue := e.value
	snapshotState := e.state
	e.seq++ // discard any in-flight fetch result
	e.inflight = false
	if overlay != nil {
		e.value = overlay(snapshotValue)
		e.optimistic = true
	}
	e.mu.Unlock()

	mutErr := mutation(ctx)

	e.mu.Lock()
	if mutErr != nil {
		e.value = snapshotValue
		e.state = snapshotState
		e.optimistic = false
		// Waiters joined to the superseded fetch would otherwise hang; hand
		// them the restored snapshot.
		waiters := e.waiters
		e.waiters = nil
		e.mu.Unlock()
		for _, ch := range waiters {
			ch <- fetchResult{value: snapshotValue}
		}
		c.log.Warn().Err(mutErr).Str("key", key).Msg("Mutation failed, cache rolled back")
		return fmt.Errorf("mutation on %q failed: %w", key, mutErr)
	}
	e.optimistic = false
	if e.state == StateFresh || e.state == StateEmpty {
		e.state = StateStale
	}
	ch := c.issueFetchLocked(key, e)
	e.mu.Unlock()

	// Wait for the post-mutation refetch so callers observe settled state;
	// a refetch failure is not a mutation failure.
	select {
	case res := <-ch:
		if res.err != nil {
			c.log.Warn().Err(res.err).Str("key", key).Msg("Post-mutation refetch failed")
		}
	case <-ctx.Done():
	}
	return nil
}

// awaitFetchLocked joins the in-flight fetch when there is one, otherwise
// issues a new fetch. Caller must hold e.mu.
func (c *Cache) awaitFetchLocked(key string, e *entry) chan fetchResult {
	if e.inflight {
		ch := make(chan fetchResult, 1)
		e.waiters = append(e.waiters, ch)
		return ch
	}
	return c.issueFetchLocked(key, e)
}

// issueFetchLocked starts a fetch goroutine tagged with the next sequence
// number. Caller must hold e.mu.
func (c *Cache) issueFetchLocked(key string, e *entry) chan fetchResult {
	e.seq++
	mySeq := e.seq
	e.inflight = true
	if e.state == StateEmpty {
		e.state = StateFetching
	}

	ch := make(chan fetchResult, 1)
	e.waiters = append(e.waiters, ch)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		value, err := e.fetch(ctx)
		c.applyResult(key, e, mySeq, value, err)
	}()

	return ch
}

// applyResult installs a fetch result unless a newer fetch has been issued
// since, in which case the result is dropped and the newer fetch will
// notify the waiters instead.
func (c *Cache) applyResult(key string, e *entry, seq uint64, value interface{}, err error) {
	e.mu.Lock()

	if seq < e.seq {
		e.mu.Unlock()
		c.log.Debug().
			Str("key", key).
			Uint64("seq", seq).
			Uint64("latest", e.seq).
			Msg("Discarded out-of-order fetch result")
		return
	}

	if err != nil {
		e.state = StateError
		e.err = err
	} else {
		e.value = value
		e.state = StateFresh
		e.err = nil
		e.updatedAt = time.Now()
		e.appliedSeq = seq
	}
	e.inflight = false

	waiters := e.waiters
	e.waiters = nil
	resultValue := e.value
	e.mu.Unlock()

	if err == nil && c.store != nil {
		if storeErr := c.store.Put(key, value, persistTTL); storeErr != nil {
			c.log.Warn().Err(storeErr).Str("key", key).Msg("Failed to persist cache entry")
		}
	}

	for _, ch := range waiters {
		ch <- fetchResult{value: resultValue, err: err}
	}
}

// effectiveState demotes an expired fresh entry to stale. Caller must hold e.mu.
func (c *Cache) effectiveState(e *entry) State {
	if e.state == StateFresh && time.Since(e.updatedAt) > c.staleAfter {
		return StateStale
	}
	return e.state
}

// EntryInfo is a read-only view of one cache entry for diagnostics.
type EntryInfo struct {
	Key        string    `json:"key"`
	State      State     `json:"state"`
	UpdatedAt  time.Time `json:"updated_at"`
	Optimistic bool      `json:"optimistic"`
}

// Inspect reports the state of every registered entry.
func (c *Cache) Inspect() []EntryInfo {
	keys := c.Keys()
	infos := make([]EntryInfo, 0, len(keys))
	for _, key := range keys {
		e, err := c.entry(key)
		if err != nil {
			continue
		}
		e.mu.Lock()
		infos = append(infos, EntryInfo{
			Key:        key,
			State:      c.effectiveState(e),
			UpdatedAt:  e.updatedAt,
			Optimistic: e.optimistic,
		})
		e.mu.Unlock()
	}
	return infos
}
