package subscribe

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plexuskit/plexus/runtime/activation"
	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/telemetry"
)

type (
	// Server serves the subscription protocol over duplex message
	// connections. One ServeConn call owns one connection; any number of
	// subscriptions multiplex over it.
	Server struct {
		root activation.Activation
		sink telemetry.Sink
	}

	// Option configures a Server.
	Option func(*Server)

	// session is the per-connection state: the subscription registry
	// mapping subscription id to its call.
	session struct {
		conn Conn

		mu   sync.Mutex
		subs map[string]*subState
	}

	subState struct {
		cancel context.CancelFunc
		bc     *bidi.Channel
	}
)

// WithTelemetry installs the observability sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(s *Server) { s.sink = sink.OrNoop() }
}

// NewServer builds a server dispatching into the given activation tree.
func NewServer(root activation.Activation, opts ...Option) *Server {
	s := &Server{root: root, sink: telemetry.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeConn serves the subscription protocol until the connection drops
// or ctx is cancelled. On return every in-flight call is cancelled and
// its pending table drained.
func (s *Server) ServeConn(ctx context.Context, conn Conn) error {
	g, ctx := errgroup.WithContext(ctx)
	sess := &session{conn: conn, subs: make(map[string]*subState)}
	defer sess.teardown()

	g.Go(func() error {
		defer sess.teardown()
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			msg, err := decodeClientMessage(data)
			if err != nil {
				s.sink.Logger.Warn(ctx, "undecodable client message", "err", err)
				continue
			}
			switch msg.Type {
			case TypeSubscribe:
				s.subscribe(ctx, g, sess, msg)
			case TypeResponse:
				s.deliver(ctx, sess, msg)
			case TypeCancel:
				s.cancel(ctx, sess, msg)
			case TypeHash:
				s.writeHash(sess)
			default:
				s.sink.Logger.Warn(ctx, "unknown client message type", "type", msg.Type)
			}
		}
	})
	return g.Wait()
}

func (s *Server) subscribe(ctx context.Context, g *errgroup.Group, sess *session, msg clientMessage) {
	if msg.ID == "" {
		s.sink.Logger.Warn(ctx, "subscribe without id", "path", msg.Path)
		return
	}
	sess.mu.Lock()
	if _, exists := sess.subs[msg.ID]; exists {
		sess.mu.Unlock()
		s.writeSubError(sess, msg.ID, "subscription id already in use", "invalid_params")
		return
	}
	callCtx, cancel := context.WithCancel(ctx)
	bc := bidi.New(true)
	sess.subs[msg.ID] = &subState{cancel: cancel, bc: bc}
	sess.mu.Unlock()

	started := time.Now()
	r, err := activation.Invoke(callCtx, s.root, msg.Path, msg.Params, bc)
	if err != nil {
		sess.remove(msg.ID)
		cancel()
		s.sink.Metrics.IncCounter(telemetry.MetricCalls, 1, "path", msg.Path, "outcome", "rejected")
		code := "execution_error"
		var de *activation.DispatchError
		if errors.As(err, &de) {
			code = string(de.Code)
		}
		s.writeSubError(sess, msg.ID, err.Error(), code)
		return
	}
	s.sink.Metrics.IncCounter(telemetry.MetricSubscriptions, 1, "path", msg.Path)

	g.Go(func() error {
		defer cancel()
		defer sess.remove(msg.ID)
		items := 0
		for it := range r.C() {
			items++
			data, err := encodeServerItem(msg.ID, it)
			if err != nil {
				s.sink.Logger.Error(callCtx, "encode stream item", "err", err)
				continue
			}
			// Write failures do not abort the pump: the stream must be
			// drained to its Done so the handler can finish.
			if err := sess.conn.WriteMessage(data); err != nil {
				s.sink.Logger.Warn(callCtx, "write stream item", "err", err)
				cancel()
			}
			if _, done := it.(item.Done); done {
				s.sink.Metrics.RecordTimer(telemetry.MetricCallDuration, time.Since(started), "path", msg.Path)
				s.sink.Metrics.IncCounter(telemetry.MetricStreamItems, float64(items), "path", msg.Path)
				return nil
			}
		}
		return nil
	})
}

func (s *Server) deliver(ctx context.Context, sess *session, msg clientMessage) {
	state, ok := sess.lookup(msg.ID)
	if !ok {
		s.sink.Logger.Warn(ctx, "response for unknown subscription", "subscription", msg.ID)
		return
	}
	resp, err := item.DecodeResponse(msg.Payload)
	if err != nil {
		s.sink.Logger.Warn(ctx, "undecodable response payload", "subscription", msg.ID, "err", err)
		return
	}
	if err := state.bc.Deliver(msg.RequestID, resp); err != nil {
		// Protocol error: logged, never propagated to handlers.
		s.sink.Logger.Warn(ctx, "response for unknown request", "subscription", msg.ID, "request_id", msg.RequestID)
	}
}

func (s *Server) cancel(ctx context.Context, sess *session, msg clientMessage) {
	state, ok := sess.lookup(msg.ID)
	if !ok {
		s.sink.Logger.Warn(ctx, "cancel for unknown subscription", "subscription", msg.ID)
		return
	}
	state.bc.Drain()
	state.cancel()
}

func (s *Server) writeHash(sess *session) {
	data, err := encodeHash(s.root.Schema().Hash)
	if err != nil {
		return
	}
	if err := sess.conn.WriteMessage(data); err != nil {
		s.sink.Logger.Warn(context.Background(), "write hash", "err", err)
	}
}

func (s *Server) writeSubError(sess *session, subID, message, code string) {
	if data, err := encodeSubError(subID, message, code); err == nil {
		_ = sess.conn.WriteMessage(data)
	}
	if data, err := encodeSubDone(subID); err == nil {
		_ = sess.conn.WriteMessage(data)
	}
}

func (sess *session) lookup(id string) (*subState, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	state, ok := sess.subs[id]
	return state, ok
}

func (sess *session) remove(id string) {
	sess.mu.Lock()
	delete(sess.subs, id)
	sess.mu.Unlock()
}

// teardown cancels every in-flight call and drains its pending table.
func (sess *session) teardown() {
	sess.mu.Lock()
	states := make([]*subState, 0, len(sess.subs))
	for id, st := range sess.subs {
		states = append(states, st)
		delete(sess.subs, id)
	}
	sess.mu.Unlock()
	for _, st := range states {
		st.bc.Drain()
		st.cancel()
	}
}
