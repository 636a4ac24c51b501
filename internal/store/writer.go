// Package store implements the filament, model, and print stores over the
// safe key-value store. Each store owns exactly one
// persistence key and one in-memory collection; mutations validate, apply
// in memory, and write the whole collection through with coalescing.
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"printstack/internal/storage"
)

// Logger mirrors the storage layer's structured logger.
type Logger = storage.Logger

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// writeThrough coalesces collection writes: mutations mark the collection
// dirty, and the write happens once when the outermost segment ends. A
// standalone mutation writes immediately; mutations grouped in a Batch
// produce exactly one write. Write failures are logged, never rolled back;
// the next successful write reconciles state.
type writeThrough struct {
	safe *storage.SafeStore
	key  string
	log  Logger

	mu      sync.Mutex
	depth   int
	pending bool
	writes  atomic.Uint64
}

func newWriteThrough(safe *storage.SafeStore, key string, log Logger) *writeThrough {
	if log == nil {
		log = noopLogger{}
	}
	return &writeThrough{safe: safe, key: key, log: log}
}

func (w *writeThrough) begin() {
	w.mu.Lock()
	w.depth++
	w.mu.Unlock()
}

func (w *writeThrough) markDirty() {
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
}

// end closes a segment; the outermost end with a dirty flag performs the
// single coalesced write of snapshot().
func (w *writeThrough) end(ctx context.Context, snapshot func() any) {
	w.mu.Lock()
	w.depth--
	flush := w.depth == 0 && w.pending
	if flush {
		w.pending = false
	}
	w.mu.Unlock()
	if !flush {
		return
	}
	if _, err := w.safe.SetItem(ctx, w.key, snapshot(), storage.SetOptions{}); err != nil {
		w.log.Error("collection write failed", "key", w.key, "error", err)
		return
	}
	w.writes.Add(1)
}

// Writes returns the number of successful persistence writes, for tests
// asserting coalescing behavior.
func (w *writeThrough) Writes() uint64 { return w.writes.Load() }

// changeHub fans collection-change notifications out to subscribers.
type changeHub struct {
	mu   sync.Mutex
	subs map[int]func()
	next int
}

// subscribe registers fn and returns an unsubscribe function.
func (h *changeHub) subscribe(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func())
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

func (h *changeHub) notify() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
