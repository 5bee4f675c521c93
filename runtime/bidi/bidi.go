// Package bidi implements the handler-visible side of a per-call two-way
// channel. A handler issues requests (confirm, prompt, select, custom) that
// are emitted into the call's outbound stream; matching responses arrive
// through the transport's reverse direction and are correlated by request
// id in a per-call pending table.
//
// Request items appear in the stream in the order the handler issued them;
// responses may be answered out of order. A handler may hold multiple
// outstanding requests concurrently.
package bidi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

// Failure modes surfaced to handlers.
var (
	// ErrNotSupported reports that the channel was constructed in
	// unidirectional mode; the transport cannot carry responses.
	ErrNotSupported = errors.New("bidi: not supported by transport")
	// ErrTimeout reports that the per-request timer expired.
	ErrTimeout = errors.New("bidi: request timed out")
	// ErrCancelled reports that the client declined or the call was
	// cancelled while the request was outstanding.
	ErrCancelled = errors.New("bidi: request cancelled")
	// ErrTypeMismatch reports that the response payload discriminator
	// disagrees with the request kind.
	ErrTypeMismatch = errors.New("bidi: response type mismatch")
	// ErrTransport reports that the underlying channel dropped.
	ErrTransport = errors.New("bidi: transport failure")
	// ErrUnknownRequest reports delivery of a response for a request id
	// that is not pending. Transports log and discard these.
	ErrUnknownRequest = errors.New("bidi: unknown request id")
)

// Default per-kind request timeouts, overridable per request with
// WithTimeout.
const (
	DefaultConfirmTimeout = 30 * time.Second
	DefaultPromptTimeout  = 60 * time.Second
	DefaultSelectTimeout  = 45 * time.Second
	DefaultCustomTimeout  = 120 * time.Second
)

type (
	// Channel correlates handler requests with client responses for a
	// single call. Safe for concurrent use.
	//
	// Transports construct the channel before the call's stream exists;
	// the dispatch layer binds the stream writer when the call starts.
	Channel struct {
		supported bool

		mu      sync.Mutex
		w       *stream.Writer
		pending map[string]chan item.Response
		drained bool
	}

	// ReqOption customizes a single request.
	ReqOption func(*reqOptions)

	reqOptions struct {
		timeout     time.Duration
		defaultBool *bool
		defaultText *string
		placeholder *string
	}
)

// New builds a bidirectional channel. Transports that define a reverse
// direction pass supported=true; the dispatch layer binds the call's
// stream writer with Bind before the handler runs.
func New(supported bool) *Channel {
	return &Channel{supported: supported, pending: make(map[string]chan item.Response)}
}

// Unsupported builds a channel for transports without a reverse direction.
// Every request fails with ErrNotSupported.
func Unsupported() *Channel { return New(false) }

// Bind attaches the call's stream writer. Requests issued before Bind fail
// with ErrTransport.
func (c *Channel) Bind(w *stream.Writer) {
	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
}

// Supported reports whether the transport can carry responses. Handlers
// must handle false gracefully.
func (c *Channel) Supported() bool { return c != nil && c.supported }

// WithTimeout overrides the per-kind default timeout for one request.
func WithTimeout(d time.Duration) ReqOption {
	return func(o *reqOptions) { o.timeout = d }
}

// WithDefaultBool preselects an answer on a confirm request.
func WithDefaultBool(v bool) ReqOption {
	return func(o *reqOptions) { o.defaultBool = &v }
}

// WithDefaultText prefills the input on a prompt request.
func WithDefaultText(s string) ReqOption {
	return func(o *reqOptions) { o.defaultText = &s }
}

// WithPlaceholder sets the empty-input placeholder on a prompt request.
func WithPlaceholder(s string) ReqOption {
	return func(o *reqOptions) { o.placeholder = &s }
}

// DefaultTimeout returns the default timeout for the given request kind.
func DefaultTimeout(k item.RequestKind) time.Duration {
	switch k.(type) {
	case item.Confirm:
		return DefaultConfirmTimeout
	case item.Prompt:
		return DefaultPromptTimeout
	case item.Select:
		return DefaultSelectTimeout
	default:
		return DefaultCustomTimeout
	}
}

// Request assigns a fresh request id, emits a Request item into the
// outbound stream, then awaits the matching response. The Request item is
// enqueued to the transport before the await suspends.
//
// Transport-injected sentinels are translated: a Cancelled payload returns
// ErrCancelled, a TimedOut payload returns ErrTimeout.
func (c *Channel) Request(ctx context.Context, kind item.RequestKind, timeout time.Duration) (item.Response, error) {
	if !c.Supported() {
		return nil, ErrNotSupported
	}
	if timeout <= 0 {
		timeout = DefaultTimeout(kind)
	}
	id := uuid.NewString()
	waiter := make(chan item.Response, 1)

	c.mu.Lock()
	if c.drained {
		c.mu.Unlock()
		return nil, ErrCancelled
	}
	w := c.w
	c.pending[id] = waiter
	c.mu.Unlock()
	if w == nil {
		c.remove(id)
		return nil, fmt.Errorf("%w: channel not bound to a stream", ErrTransport)
	}

	if err := w.Request(ctx, id, kind, timeout); err != nil {
		c.remove(id)
		if errors.Is(err, stream.ErrClosed) {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-waiter:
		switch resp.(type) {
		case item.Cancelled:
			return resp, ErrCancelled
		case item.TimedOut:
			return resp, ErrTimeout
		}
		return resp, nil
	case <-timer.C:
		c.remove(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.remove(id)
		return nil, ErrCancelled
	}
}

// Confirm asks the client a yes/no question and returns the decision.
func (c *Channel) Confirm(ctx context.Context, prompt string, opts ...ReqOption) (bool, error) {
	o := apply(opts)
	resp, err := c.Request(ctx, item.Confirm{PromptText: prompt, Default: o.defaultBool}, o.timeout)
	if err != nil {
		return false, err
	}
	v, ok := resp.(item.Confirmed)
	if !ok {
		return false, fmt.Errorf("%w: got %s, want confirmed", ErrTypeMismatch, item.ResponseType(resp))
	}
	return v.Value, nil
}

// Prompt asks the client for free-form text and returns the answer.
func (c *Channel) Prompt(ctx context.Context, message string, opts ...ReqOption) (string, error) {
	o := apply(opts)
	resp, err := c.Request(ctx, item.Prompt{Message: message, Default: o.defaultText, Placeholder: o.placeholder}, o.timeout)
	if err != nil {
		return "", err
	}
	v, ok := resp.(item.Text)
	if !ok {
		return "", fmt.Errorf("%w: got %s, want text", ErrTypeMismatch, item.ResponseType(resp))
	}
	return v.Value, nil
}

// Select asks the client to pick among options and returns the chosen
// values.
func (c *Channel) Select(ctx context.Context, message string, options []item.Option, multi bool, opts ...ReqOption) ([]string, error) {
	o := apply(opts)
	resp, err := c.Request(ctx, item.Select{Message: message, Options: options, Multi: multi}, o.timeout)
	if err != nil {
		return nil, err
	}
	v, ok := resp.(item.Selected)
	if !ok {
		return nil, fmt.Errorf("%w: got %s, want selected", ErrTypeMismatch, item.ResponseType(resp))
	}
	return v.Values, nil
}

// Deliver routes a client response to its waiter and removes the pending
// entry. Delivery for an unknown id returns ErrUnknownRequest; the caller
// (transport) logs and discards, never propagates to handlers.
func (c *Channel) Deliver(requestID string, resp item.Response) error {
	c.mu.Lock()
	waiter, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	waiter <- resp
	return nil
}

// Drain resolves every outstanding waiter with Cancelled and fails all
// future requests. Called by transports on call cancellation.
func (c *Channel) Drain() {
	c.mu.Lock()
	waiters := make([]chan item.Response, 0, len(c.pending))
	for id, w := range c.pending {
		waiters = append(waiters, w)
		delete(c.pending, id)
	}
	c.drained = true
	c.mu.Unlock()
	for _, w := range waiters {
		w <- item.Cancelled{}
	}
}

// Outstanding returns the number of pending requests.
func (c *Channel) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func apply(opts []ReqOption) reqOptions {
	var o reqOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
