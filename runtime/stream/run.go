package stream

import (
	"context"
	"errors"

	"github.com/plexuskit/plexus/runtime/item"
)

// Handler is the body of a streaming call. It emits items through the
// writer and returns when the stream is complete. A non-nil error is
// reported as a terminal non-recoverable Error item before the Done,
// except context cancellation or deadline errors and ErrClosed, which end
// the stream with a bare Done.
type Handler func(ctx context.Context, w *Writer) error

// Run spawns the handler on its own goroutine and returns the reader the
// transport consumes. The runtime owns termination: whatever the handler
// does, the stream ends with exactly one Done.
//
// Cancellation is cooperative: when ctx is cancelled the handler's next
// send observes the cancellation and returns; Run then closes the stream.
// A handler that returns the context's error terminates with a bare Done,
// not an Error. Any other error, such as bidi.ErrCancelled from a request
// drained by the cancellation, is still reported as an Error before Done.
func Run(ctx context.Context, meta item.Meta, capacity int, fn Handler) *Reader {
	w, r := New(meta, capacity)
	go func() {
		err := fn(ctx, w)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		case errors.Is(err, ErrClosed):
		default:
			// Terminal error: report it before Done. The send uses a
			// context detached from the (possibly cancelled) call so
			// the report is not itself cancelled away.
			_ = w.Error(context.WithoutCancel(ctx), err.Error(), "", false)
		}
		w.Close()
	}()
	return r
}

// Single returns an already-terminated stream carrying one Data item. Used
// to wrap non-streaming results and the reserved schema terminal.
func Single(meta item.Meta, contentType string, payload []byte) *Reader {
	w, r := New(meta, 2)
	// Buffered capacity 2 makes both sends immediate.
	_ = w.Data(context.Background(), contentType, payload)
	w.Close()
	return r
}
