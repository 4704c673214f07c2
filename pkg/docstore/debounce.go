package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/metrics"
)

// DebouncedWriter coalesces rapid writes to the same document into a
// single physical write. Each Put restarts the per-document window and
// replaces the buffered body, so only the newest state ever reaches the
// backing store. Reads are not buffered; callers holding fresh state
// should read through their own cache, not this writer.
type DebouncedWriter struct {
	inner   Store
	window  time.Duration
	logg    *logger.Logger
	metrics *metrics.StorefrontMetrics

	mu      sync.Mutex
	pending map[memKey]*pendingWrite
	closed  bool

	// flushMu serializes physical writes so a delayed flush can never
	// overtake a newer one for the same document.
	flushMu sync.Mutex
	wg      sync.WaitGroup
}

type pendingWrite struct {
	body  []byte
	timer *time.Timer
}

// NewDebouncedWriter wraps store with a debounce window. A zero or
// negative window disables buffering and writes through immediately.
func NewDebouncedWriter(store Store, window time.Duration, logg *logger.Logger, m *metrics.StorefrontMetrics) (*DebouncedWriter, error) {
	if store == nil {
		return nil, errors.New("backing store is required")
	}
	return &DebouncedWriter{
		inner:   store,
		window:  window,
		logg:    logg,
		metrics: m,
		pending: make(map[memKey]*pendingWrite),
	}, nil
}

// Get reads through to the backing store, preferring a buffered body
// that has not flushed yet so callers never observe stale state inside
// the debounce window.
func (w *DebouncedWriter) Get(ctx context.Context, owner, name string) ([]byte, error) {
	w.mu.Lock()
	if pw, ok := w.pending[memKey{owner, name}]; ok {
		out := make([]byte, len(pw.body))
		copy(out, pw.body)
		w.mu.Unlock()
		return out, nil
	}
	w.mu.Unlock()
	return w.inner.Get(ctx, owner, name)
}

// Put buffers body and schedules a flush after the debounce window.
func (w *DebouncedWriter) Put(ctx context.Context, owner, name string, body []byte) error {
	if w.window <= 0 {
		return w.write(owner, name, body)
	}

	buffered := make([]byte, len(body))
	copy(buffered, body)
	key := memKey{owner, name}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("docstore: writer is closed")
	}
	if pw, ok := w.pending[key]; ok {
		pw.timer.Stop()
		pw.body = buffered
		pw.timer.Reset(w.window)
		w.metrics.IncWriteCoalesced()
		w.mu.Unlock()
		return nil
	}
	pw := &pendingWrite{body: buffered}
	pw.timer = time.AfterFunc(w.window, func() { w.flush(key) })
	w.pending[key] = pw
	w.wg.Add(1)
	w.mu.Unlock()
	return nil
}

// Delete flushes nothing; a pending body for the document is discarded
// before the backing delete runs.
func (w *DebouncedWriter) Delete(ctx context.Context, owner, name string) error {
	key := memKey{owner, name}
	w.mu.Lock()
	if pw, ok := w.pending[key]; ok {
		if pw.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, key)
	}
	w.mu.Unlock()

	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.inner.Delete(ctx, owner, name)
}

// Flush writes out every buffered document immediately.
func (w *DebouncedWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	keys := make([]memKey, 0, len(w.pending))
	for key, pw := range w.pending {
		if pw.timer.Stop() {
			keys = append(keys, key)
		}
	}
	w.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := w.flushKey(key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes buffered writes and rejects further ones.
func (w *DebouncedWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	err := w.Flush(ctx)
	w.wg.Wait()
	return err
}

func (w *DebouncedWriter) flush(key memKey) {
	if err := w.flushKey(key); err != nil && w.logg != nil {
		w.logg.Error(context.Background(), "flushing document write", err)
	}
}

func (w *DebouncedWriter) flushKey(key memKey) error {
	w.mu.Lock()
	pw, ok := w.pending[key]
	if !ok {
		w.mu.Unlock()
		return nil
	}
	delete(w.pending, key)
	w.mu.Unlock()

	defer w.wg.Done()
	return w.write(key.owner, key.name, pw.body)
}

func (w *DebouncedWriter) write(owner, name string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w.flushMu.Lock()
	err := w.inner.Put(ctx, owner, name, body)
	w.flushMu.Unlock()

	if err != nil {
		w.metrics.IncDocumentWriteFailure(name)
		return err
	}
	w.metrics.IncDocumentWrite(name)
	return nil
}
