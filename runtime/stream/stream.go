// Package stream implements the per-call item pipe between a handler and a
// transport. The pipe is bounded: when the transport consumes slower than
// the handler produces, the handler suspends at the channel boundary, which
// is the runtime's backpressure mechanism.
//
// Invariants enforced here:
//   - exactly one Done terminates every stream (Close is idempotent);
//   - every emitted item is stamped with the call's provenance;
//   - sends after Close return ErrClosed and the item is dropped;
//   - a cancelled call still terminates with Done.
//
// A send that races Close may land in the buffer after the Done; transports
// stop at the first Done, so such stragglers are never delivered.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/plexuskit/plexus/runtime/item"
)

// DefaultCapacity is the bound on in-flight items between handler and
// transport when the caller does not pick one.
const DefaultCapacity = 32

// ErrClosed is returned by Writer sends after the stream terminated or the
// reader went away.
var ErrClosed = errors.New("stream: closed")

type (
	// Writer is the handler-facing side of the pipe. All methods are safe
	// for concurrent use; each send blocks while the buffer is full.
	Writer struct {
		meta item.Meta
		ch   chan item.Item
		// gone is closed when the reader abandons the stream.
		gone     chan struct{}
		goneOnce sync.Once

		mu     sync.Mutex
		closed bool
	}

	// Reader is the transport-facing side of the pipe.
	Reader struct {
		w *Writer
	}
)

// New builds a bounded pipe stamped with the given provenance. A capacity
// of zero or less selects DefaultCapacity.
func New(meta item.Meta, capacity int) (*Writer, *Reader) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	w := &Writer{
		meta: meta,
		ch:   make(chan item.Item, capacity),
		gone: make(chan struct{}),
	}
	return w, &Reader{w: w}
}

// Meta returns the provenance stamped on every item this writer emits.
func (w *Writer) Meta() item.Meta { return w.meta }

// Data emits a typed result chunk.
func (w *Writer) Data(ctx context.Context, contentType string, payload []byte) error {
	return w.send(ctx, item.Data{Meta: w.meta, ContentType: contentType, Payload: payload})
}

// Progress emits an advisory progress update. Fraction may be nil.
func (w *Writer) Progress(ctx context.Context, message string, fraction *float64) error {
	return w.send(ctx, item.Progress{Meta: w.meta, Message: message, Fraction: fraction})
}

// Error emits an error item. When recoverable is false the caller must
// close the stream promptly.
func (w *Writer) Error(ctx context.Context, message, code string, recoverable bool) error {
	return w.send(ctx, item.Error{Meta: w.meta, Message: message, Code: code, Recoverable: recoverable})
}

// Request emits a server-to-client input request. The bidirectional
// channel issues requests through this; handlers use bidi, not Request.
func (w *Writer) Request(ctx context.Context, id string, req item.RequestKind, timeout time.Duration) error {
	return w.send(ctx, item.Request{Meta: w.meta, ID: id, Req: req, Timeout: timeout})
}

func (w *Writer) send(ctx context.Context, it item.Item) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()
	select {
	case w.ch <- it:
		return nil
	case <-w.gone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the stream with a single Done. Idempotent and safe to
// call concurrently with sends.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()
	select {
	case w.ch <- item.Done{Meta: w.meta}:
	case <-w.gone:
	}
}

// C returns the item channel. Consumers stop after observing a Done item;
// the channel itself is never closed.
func (r *Reader) C() <-chan item.Item { return r.w.ch }

// Meta returns the provenance of the stream.
func (r *Reader) Meta() item.Meta { return r.w.meta }

// Next returns the next item, blocking until one is available or the
// context is done.
func (r *Reader) Next(ctx context.Context) (item.Item, error) {
	select {
	case it := <-r.w.ch:
		return it, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tells the writer the consumer is gone. Blocked and future sends
// fail with ErrClosed. Idempotent.
func (r *Reader) Close() {
	r.w.goneOnce.Do(func() { close(r.w.gone) })
}
