// Package dispatch turns an incoming (method, parameter document) pair
// into a typed stream. Generated code builds a Table whose entries pair a
// method schema with its handler; the table validates parameter documents
// against the published schema before any handler runs, so emission and
// validation share one source of truth.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"goa.design/clue/log"

	"github.com/plexuskit/plexus/runtime/activation"
	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/schema"
	"github.com/plexuskit/plexus/runtime/stream"
)

type (
	// HandlerFunc is the uniform shape generated code adapts typed
	// handlers into. The handler emits items through w; the runtime owns
	// the terminal Done. params is the validated parameter document.
	HandlerFunc func(ctx context.Context, bc *bidi.Channel, w *stream.Writer, params json.RawMessage) error

	// Method pairs a method schema with its handler.
	Method struct {
		// Schema describes the method; its Hash is stamped when the
		// owning activation is built.
		Schema schema.Method
		// Handler runs the call.
		Handler HandlerFunc

		compiled *jsonschema.Schema
	}

	// Table maps method names to their entries in declaration order.
	Table struct {
		ordered []string
		methods map[string]*Method
	}

	// Activation is a leaf endpoint backed by a dispatch table.
	Activation struct {
		ns       string
		version  string
		desc     string
		table    *Table
		doc      *schema.Activation
		capacity int
	}

	// Option configures a dispatch activation.
	Option func(*Activation)
)

// WithCapacity overrides the stream buffer bound for calls on this
// activation.
func WithCapacity(n int) Option {
	return func(a *Activation) { a.capacity = n }
}

// NewTable compiles the parameter schema of every method and returns the
// table. Compilation failures report the offending method.
func NewTable(methods ...*Method) (*Table, error) {
	t := &Table{methods: make(map[string]*Method, len(methods))}
	for _, m := range methods {
		name := m.Schema.Name
		if name == "" {
			return nil, fmt.Errorf("dispatch: method with empty name")
		}
		if name == activation.SchemaMethod {
			return nil, fmt.Errorf("dispatch: method name %q is reserved", name)
		}
		if _, ok := t.methods[name]; ok {
			return nil, fmt.Errorf("dispatch: duplicate method %q", name)
		}
		compiled, err := compileParams(&m.Schema)
		if err != nil {
			return nil, fmt.Errorf("dispatch: method %q: %w", name, err)
		}
		m.compiled = compiled
		t.methods[name] = m
		t.ordered = append(t.ordered, name)
	}
	return t, nil
}

func compileParams(m *schema.Method) (*jsonschema.Schema, error) {
	raw := schema.ParamsObject(m)
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal params schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("params.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile("params.json")
	if err != nil {
		return nil, fmt.Errorf("compile params schema: %w", err)
	}
	return compiled, nil
}

// New builds a leaf activation from a dispatch table. Method and
// activation hashes are computed here; the activation is immutable
// afterwards.
func New(ns, version, desc string, table *Table, opts ...Option) (*Activation, error) {
	a := &Activation{ns: ns, version: version, desc: desc, table: table}
	for _, opt := range opts {
		opt(a)
	}
	doc := &schema.Activation{
		Namespace:   ns,
		Version:     version,
		Description: desc,
		Methods:     make([]schema.Method, len(table.ordered)),
	}
	for i, name := range table.ordered {
		doc.Methods[i] = table.methods[name].Schema
	}
	doc.Finalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	// Stamp the computed hashes back onto the table entries.
	for i, name := range table.ordered {
		table.methods[name].Schema.Hash = doc.Methods[i].Hash
	}
	a.doc = doc
	return a, nil
}

// MustNew is New for wiring code where the inputs are generated constants.
func MustNew(ns, version, desc string, table *Table, opts ...Option) *Activation {
	a, err := New(ns, version, desc, table, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Namespace implements activation.Activation.
func (a *Activation) Namespace() string { return a.ns }

// Version implements activation.Activation.
func (a *Activation) Version() string { return a.version }

// Description implements activation.Activation.
func (a *Activation) Description() string { return a.desc }

// MethodNames implements activation.Activation.
func (a *Activation) MethodNames() []string {
	names := make([]string, len(a.table.ordered))
	copy(names, a.table.ordered)
	return names
}

// Schema implements activation.Activation.
func (a *Activation) Schema() *schema.Activation { return a.doc }

// Call implements activation.Activation: validate, then dispatch.
func (a *Activation) Call(ctx context.Context, method string, params json.RawMessage, bc *bidi.Channel) (*stream.Reader, error) {
	m, ok := a.table.methods[method]
	if !ok {
		names := a.MethodNames()
		sort.Strings(names)
		return nil, activation.Errorf(activation.CodeMethodNotFound,
			"activation %q has no method %q; available: %s", a.ns, method, strings.Join(names, ", "))
	}

	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(params, &doc); err != nil {
		return nil, activation.Wrap(activation.CodeInvalidParams, err, "parameters are not valid JSON")
	}
	if err := m.compiled.Validate(doc); err != nil {
		return nil, activation.Wrap(activation.CodeInvalidParams, err, "parameters do not match schema for %q", method)
	}

	walked := activation.PathFrom(ctx)
	if walked == nil {
		walked = []string{a.ns}
	}
	meta := activation.Meta(walked, method)
	if bc == nil {
		bc = bidi.Unsupported()
	}
	log.Debug(ctx, log.KV{K: "msg", V: "dispatch"}, log.KV{K: "method", V: meta.Method})

	return stream.Run(ctx, meta, a.capacity, func(ctx context.Context, w *stream.Writer) error {
		bc.Bind(w)
		defer bc.Drain()
		return m.Handler(ctx, bc, w, params)
	}), nil
}

// WriteJSON marshals v and emits it as a single Data item with the
// application/json content type. Generated code uses it to wrap
// non-streaming handler results.
func WriteJSON(ctx context.Context, w *stream.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return w.Data(ctx, "application/json", raw)
}
