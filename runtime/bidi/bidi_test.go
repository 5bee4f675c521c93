package bidi

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

var testMeta = item.Meta{Method: "interactive.provision", Path: []string{"interactive"}}

// boundChannel returns a supported channel bound to a fresh stream and
// the stream's reader.
func boundChannel(capacity int) (*Channel, *stream.Reader) {
	w, r := stream.New(testMeta, capacity)
	c := New(true)
	c.Bind(w)
	return c, r
}

// nextRequest reads items off the reader until it sees a Request.
func nextRequest(t *testing.T, r *stream.Reader) item.Request {
	t.Helper()
	for {
		select {
		case it := <-r.C():
			if req, ok := it.(item.Request); ok {
				return req
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no request item emitted")
		}
	}
}

func TestConfirmCorrelatesResponse(t *testing.T) {
	c, r := boundChannel(4)

	type result struct {
		ok  bool
		err error
	}
	resc := make(chan result, 1)
	go func() {
		ok, err := c.Confirm(context.Background(), "Proceed?")
		resc <- result{ok, err}
	}()

	req := nextRequest(t, r)
	confirm, ok := req.Req.(item.Confirm)
	require.True(t, ok)
	assert.Equal(t, "Proceed?", confirm.PromptText)
	assert.Equal(t, DefaultConfirmTimeout, req.Timeout)

	require.NoError(t, c.Deliver(req.ID, item.Confirmed{Value: true}))
	res := <-resc
	require.NoError(t, res.err)
	assert.True(t, res.ok)
	assert.Zero(t, c.Outstanding())
}

func TestConcurrentRequestsAnswerOutOfOrder(t *testing.T) {
	c, r := boundChannel(8)

	answers := make(chan string, 2)
	var wg sync.WaitGroup
	for _, q := range []string{"first?", "second?"} {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			text, err := c.Prompt(context.Background(), q)
			if err == nil {
				answers <- text
			}
		}(q)
	}

	req1 := nextRequest(t, r)
	req2 := nextRequest(t, r)
	require.NotEqual(t, req1.ID, req2.ID)

	// Answer in reverse order; each waiter receives its own response.
	require.NoError(t, c.Deliver(req2.ID, item.Text{Value: "two"}))
	require.NoError(t, c.Deliver(req1.ID, item.Text{Value: "one"}))
	wg.Wait()
	close(answers)
	got := map[string]bool{}
	for a := range answers {
		got[a] = true
	}
	assert.Equal(t, map[string]bool{"one": true, "two": true}, got)
}

func TestRequestTimeoutRemovesPendingEntry(t *testing.T) {
	c, r := boundChannel(4)

	start := time.Now()
	_, err := c.Request(context.Background(), item.Confirm{PromptText: "?"}, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), time.Now(), time.Second)
	assert.Zero(t, c.Outstanding())

	// A late response for the expired request is a protocol error.
	req := nextRequest(t, r)
	assert.ErrorIs(t, c.Deliver(req.ID, item.Confirmed{Value: true}), ErrUnknownRequest)
}

func TestDrainCancelsAllWaiters(t *testing.T) {
	c, r := boundChannel(8)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := c.Prompt(context.Background(), "name?")
			errs <- err
		}()
	}
	nextRequest(t, r)
	nextRequest(t, r)

	c.Drain()
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, <-errs, ErrCancelled)
	}
	// Requests after drain fail immediately.
	_, err := c.Confirm(context.Background(), "again?")
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestContextCancellationFailsWaiter(t *testing.T) {
	c, r := boundChannel(4)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := c.Prompt(ctx, "name?")
		errc <- err
	}()
	nextRequest(t, r)
	cancel()
	assert.ErrorIs(t, <-errc, ErrCancelled)
	assert.Zero(t, c.Outstanding())
}

func TestTypeMismatchSurfaces(t *testing.T) {
	c, r := boundChannel(4)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Confirm(context.Background(), "Proceed?")
		errc <- err
	}()
	req := nextRequest(t, r)
	require.NoError(t, c.Deliver(req.ID, item.Text{Value: "not a bool"}))
	assert.ErrorIs(t, <-errc, ErrTypeMismatch)
}

func TestTransportSentinelsTranslate(t *testing.T) {
	c, r := boundChannel(4)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Request(context.Background(), item.Confirm{PromptText: "?"}, time.Minute)
		errc <- err
	}()
	req := nextRequest(t, r)
	require.NoError(t, c.Deliver(req.ID, item.Cancelled{}))
	assert.ErrorIs(t, <-errc, ErrCancelled)
}

func TestUnsupportedChannel(t *testing.T) {
	c := Unsupported()
	assert.False(t, c.Supported())
	_, err := c.Confirm(context.Background(), "?")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestDefaultTimeouts(t *testing.T) {
	assert.Equal(t, DefaultConfirmTimeout, DefaultTimeout(item.Confirm{}))
	assert.Equal(t, DefaultPromptTimeout, DefaultTimeout(item.Prompt{}))
	assert.Equal(t, DefaultSelectTimeout, DefaultTimeout(item.Select{}))
	assert.Equal(t, DefaultCustomTimeout, DefaultTimeout(item.Custom{}))
}
