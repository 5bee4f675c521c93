package toolcall

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/plexuskit/plexus/runtime/activation"
	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/schema"
	"github.com/plexuskit/plexus/runtime/telemetry"
)

type (
	// Server serves the tool-call transport over a framed byte stream
	// (stdio or a single TCP connection). One Server handles one
	// connection; calls on the connection run concurrently.
	Server struct {
		root  activation.Activation
		sink  telemetry.Sink
		limit rate.Limit
		burst int

		writeMu sync.Mutex
		out     io.Writer

		callsMu sync.Mutex
		calls   map[string]*callState
	}

	// Option configures a Server.
	Option func(*Server)

	callState struct {
		cancel context.CancelFunc
		bc     *bidi.Channel
	}
)

// WithTelemetry installs the observability sink.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(s *Server) { s.sink = sink.OrNoop() }
}

// WithProgressRate throttles advisory Progress notifications per call.
// Progress beyond the limit is dropped, never delayed; Request, Error and
// the final response are never throttled.
func WithProgressRate(limit rate.Limit, burst int) Option {
	return func(s *Server) { s.limit, s.burst = limit, burst }
}

// NewServer builds a server dispatching into the given activation tree.
func NewServer(root activation.Activation, opts ...Option) *Server {
	s := &Server{
		root:  root,
		sink:  telemetry.Noop(),
		calls: make(map[string]*callState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve reads framed envelopes from rw until EOF or ctx cancellation.
// In-flight calls are cancelled when Serve returns.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.out = rw

	reader := bufio.NewReader(rw)
	var wg sync.WaitGroup
	defer func() {
		// Cancel in-flight calls before waiting for them to finish.
		cancel()
		wg.Wait()
	}()
	for {
		frame, err := readFrame(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		var req rpcRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			s.sink.Logger.Warn(ctx, "undecodable envelope", "err", err)
			s.respondError(nil, codeParse, "invalid JSON")
			continue
		}
		switch req.Method {
		case MethodCall:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleCall(ctx, req)
			}()
		case "tools/call":
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.handleToolsCall(ctx, req)
			}()
		case MethodRespond, RespondTool:
			s.handleRespond(ctx, req)
		case MethodCancel:
			s.handleCancel(ctx, req)
		case MethodHash:
			s.respondResult(req.ID, map[string]string{"hash": s.root.Schema().Hash})
		case MethodListTools:
			s.respondResult(req.ID, map[string]any{"tools": s.listTools()})
		default:
			if len(req.ID) == 0 {
				// Unknown notification: ignore per JSON-RPC.
				continue
			}
			s.respondError(req.ID, codeMethodNotFound, "unknown method "+req.Method)
		}
	}
}

// handleToolsCall maps the MCP-style tools/call envelope onto a plain
// call (or onto respond for the reserved `_respond` tool).
func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.respondError(req.ID, codeInvalidParams, "invalid tools/call params")
		return
	}
	if p.Name == RespondTool {
		s.handleRespond(ctx, rpcRequest{JSONRPC: req.JSONRPC, Method: MethodRespond, ID: req.ID, Params: p.Arguments})
		return
	}
	raw, _ := json.Marshal(callParams{Path: p.Name, Params: p.Arguments})
	s.handleCall(ctx, rpcRequest{JSONRPC: req.JSONRPC, Method: MethodCall, ID: req.ID, Params: raw})
}

func (s *Server) handleCall(ctx context.Context, req rpcRequest) {
	var p callParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.respondError(req.ID, codeInvalidParams, "invalid call params")
		return
	}
	callID := correlator(req.ID)
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Bidirectional is supported: responses arrive via the `_respond`
	// endpoint on the same connection.
	bc := bidi.New(true)
	s.register(callID, &callState{cancel: cancel, bc: bc})
	defer s.unregister(callID)

	started := time.Now()
	traceCtx, end := s.sink.Tracer.Start(callCtx, "plexus.call", "path", p.Path)
	r, err := activation.Invoke(traceCtx, s.root, p.Path, p.Params, bc)
	if err != nil {
		end(err)
		s.sink.Metrics.IncCounter(telemetry.MetricCalls, 1, "path", p.Path, "outcome", "rejected")
		s.respondError(req.ID, rpcCode(err), err.Error())
		return
	}

	var limiter *rate.Limiter
	if s.limit > 0 {
		limiter = rate.NewLimiter(s.limit, max(1, s.burst))
	}

	result := callResult{Content: []contentItem{}}
	items := 0
	for it := range r.C() {
		items++
		switch v := it.(type) {
		case item.Progress:
			if limiter != nil && !limiter.Allow() {
				continue
			}
			s.notify(NoteProgress, progressNote{
				CallID:   callID,
				Method:   v.Meta.Method,
				Message:  v.Message,
				Fraction: v.Fraction,
			})
		case item.Request:
			kindRaw, err := json.Marshal(v.Req)
			if err != nil {
				s.sink.Logger.Error(ctx, "encode request kind", "err", err)
				continue
			}
			s.sink.Metrics.IncCounter(telemetry.MetricRequestsSent, 1, "path", p.Path)
			s.notify(NoteRequest, requestNote{
				CallID:      callID,
				Method:      v.Meta.Method,
				RequestID:   v.ID,
				RequestType: item.RequestType(v.Req),
				Request:     kindRaw,
				TimeoutMS:   v.Timeout.Milliseconds(),
			})
		case item.Data:
			result.Content = append(result.Content, contentItem{
				Type:     "text",
				Text:     string(v.Payload),
				MimeType: v.ContentType,
			})
		case item.Error:
			if v.Recoverable {
				s.notify(NoteError, errorNote{CallID: callID, Method: v.Meta.Method, Message: v.Message, Code: v.Code})
				continue
			}
			result.IsError = true
			result.Content = append(result.Content, contentItem{Type: "text", Text: v.Message})
		case item.Done:
			// Final response is emitted exactly once, on Done. Items
			// racing the Done stay in the buffer and are discarded.
			end(nil)
			s.sink.Metrics.IncCounter(telemetry.MetricCalls, 1, "path", p.Path, "outcome", outcome(result))
			s.sink.Metrics.RecordTimer(telemetry.MetricCallDuration, time.Since(started), "path", p.Path)
			s.sink.Metrics.IncCounter(telemetry.MetricStreamItems, float64(items), "path", p.Path)
			s.respondResult(req.ID, result)
			return
		}
	}
}

func (s *Server) handleRespond(ctx context.Context, req rpcRequest) {
	var p respondParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.respondError(req.ID, codeInvalidParams, "invalid respond params")
		return
	}
	resp, err := item.DecodeResponse(p.Payload)
	if err != nil {
		s.respondError(req.ID, codeInvalidParams, err.Error())
		return
	}
	s.callsMu.Lock()
	state, ok := s.calls[p.CallID]
	s.callsMu.Unlock()
	delivered := false
	if ok {
		if err := state.bc.Deliver(p.RequestID, resp); err != nil {
			// Protocol error: logged, never propagated to handlers.
			s.sink.Logger.Warn(ctx, "response for unknown request", "call_id", p.CallID, "request_id", p.RequestID)
		} else {
			delivered = true
		}
	} else {
		s.sink.Logger.Warn(ctx, "response for unknown call", "call_id", p.CallID)
	}
	if len(req.ID) > 0 {
		s.respondResult(req.ID, map[string]bool{"delivered": delivered})
	}
}

func (s *Server) handleCancel(ctx context.Context, req rpcRequest) {
	var p cancelParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		s.respondError(req.ID, codeInvalidParams, "invalid cancel params")
		return
	}
	s.callsMu.Lock()
	state, ok := s.calls[p.CallID]
	s.callsMu.Unlock()
	if ok {
		state.bc.Drain()
		state.cancel()
	} else {
		s.sink.Logger.Warn(ctx, "cancel for unknown call", "call_id", p.CallID)
	}
	if len(req.ID) > 0 {
		s.respondResult(req.ID, map[string]bool{"cancelled": ok})
	}
}

// listTools flattens the activation tree into tool specs. Tool names use
// dot notation; the reserved `_respond` tool is always present.
func (s *Server) listTools() []toolSpec {
	specs := []toolSpec{{
		Name:        RespondTool,
		Description: "Deliver a response to a pending bidirectional request.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"call_id":{"type":"string"},"request_id":{"type":"string"},"payload":{"type":"object"}},"required":["call_id","request_id","payload"],"additionalProperties":false}`),
	}}
	collectTools(s.root, nil, &specs)
	return specs
}

func collectTools(a activation.Activation, prefix []string, out *[]toolSpec) {
	doc := a.Schema()
	for i := range doc.Methods {
		m := &doc.Methods[i]
		name := m.Name
		if len(prefix) > 0 {
			name = strings.Join(prefix, ".") + "." + m.Name
		}
		*out = append(*out, toolSpec{
			Name:          name,
			Description:   m.Description,
			InputSchema:   schema.ParamsObject(m),
			Streaming:     m.Streaming,
			Bidirectional: m.Bidirectional,
		})
	}
	hub, ok := a.(activation.Hub)
	if !ok {
		return
	}
	for _, c := range hub.Children() {
		child, ok := hub.Child(c.Namespace)
		if !ok {
			continue
		}
		// Fresh slice per child so sibling walks cannot alias.
		next := make([]string, len(prefix)+1)
		copy(next, prefix)
		next[len(prefix)] = c.Namespace
		collectTools(child, next, out)
	}
}

func (s *Server) register(callID string, state *callState) {
	s.callsMu.Lock()
	s.calls[callID] = state
	s.callsMu.Unlock()
}

func (s *Server) unregister(callID string) {
	s.callsMu.Lock()
	delete(s.calls, callID)
	s.callsMu.Unlock()
}

func (s *Server) respondResult(id json.RawMessage, result any) {
	s.write(rpcResponse{JSONRPC: "2.0", Result: result, ID: id})
}

func (s *Server) respondError(id json.RawMessage, code int, message string) {
	s.write(rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: message}, ID: id})
}

func (s *Server) notify(method string, params any) {
	s.write(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

func (s *Server) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sink.Logger.Error(context.Background(), "encode envelope", "err", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeFrame(s.out, data); err != nil {
		s.sink.Logger.Warn(context.Background(), "write frame", "err", err)
	}
}

// correlator renders the envelope id as the call correlator used by
// notifications, respond and cancel.
func correlator(id json.RawMessage) string {
	var str string
	if err := json.Unmarshal(id, &str); err == nil {
		return str
	}
	return string(id)
}

// rpcCode maps dispatch failures onto JSON-RPC error codes.
func rpcCode(err error) int {
	var de *activation.DispatchError
	if !errors.As(err, &de) {
		return codeInternal
	}
	switch de.Code {
	case activation.CodeUnknownPath, activation.CodeMethodNotFound:
		return codeMethodNotFound
	case activation.CodeInvalidParams:
		return codeInvalidParams
	default:
		return codeInternal
	}
}

func outcome(result callResult) string {
	if result.IsError {
		return "error"
	}
	return "ok"
}
