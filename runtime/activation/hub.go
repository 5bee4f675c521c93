package activation

import (
	"context"
	"encoding/json"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/schema"
	"github.com/plexuskit/plexus/runtime/stream"
)

type (
	// BasicHub is the standard hub: a fixed ordered set of children plus
	// optional methods of its own, both established at construction.
	BasicHub struct {
		ns      string
		version string
		desc    string
		// self owns the hub's own methods, when any.
		self    Activation
		ordered []Activation
		index   map[string]Activation
		doc     *schema.Activation
	}

	// HubOption configures a BasicHub.
	HubOption func(*BasicHub)

	// DynamicHub computes its children on demand. Lookups must be
	// idempotent by namespace: repeated lookups with the same segment
	// yield equivalent activations with identical hashes.
	DynamicHub struct {
		ns      string
		version string
		desc    string
		list    func() []schema.ChildSummary
		lookup  func(namespace string) (Activation, bool)
	}
)

// WithChildren appends ordered children to the hub.
func WithChildren(children ...Activation) HubOption {
	return func(h *BasicHub) { h.ordered = append(h.ordered, children...) }
}

// WithMethods gives the hub its own methods, owned by the given
// activation. The activation's namespace is ignored; the hub's is used.
func WithMethods(self Activation) HubOption {
	return func(h *BasicHub) { h.self = self }
}

// NewHub builds a hub with the given identity and options. The schema
// document and aggregate hash are computed once here; hubs are immutable
// afterwards.
func NewHub(ns, version, desc string, opts ...HubOption) *BasicHub {
	h := &BasicHub{ns: ns, version: version, desc: desc}
	for _, opt := range opts {
		opt(h)
	}
	h.index = make(map[string]Activation, len(h.ordered))
	for _, c := range h.ordered {
		h.index[c.Namespace()] = c
	}
	h.doc = h.buildSchema()
	return h
}

func (h *BasicHub) buildSchema() *schema.Activation {
	doc := &schema.Activation{
		Namespace:   h.ns,
		Version:     h.version,
		Description: h.desc,
		Children:    make([]schema.ChildSummary, len(h.ordered)),
	}
	if h.self != nil {
		doc.Methods = h.self.Schema().Methods
	}
	for i, c := range h.ordered {
		doc.Children[i] = schema.ChildSummary{Namespace: c.Namespace(), Hash: c.Schema().Hash}
	}
	return doc.Finalize()
}

// Namespace implements Activation.
func (h *BasicHub) Namespace() string { return h.ns }

// Version implements Activation.
func (h *BasicHub) Version() string { return h.version }

// Description implements Activation.
func (h *BasicHub) Description() string { return h.desc }

// MethodNames implements Activation.
func (h *BasicHub) MethodNames() []string {
	if h.self == nil {
		return nil
	}
	return h.self.MethodNames()
}

// Call implements Activation by delegating to the hub's own methods.
func (h *BasicHub) Call(ctx context.Context, method string, params json.RawMessage, bc *bidi.Channel) (*stream.Reader, error) {
	if h.self == nil {
		return nil, Errorf(CodeMethodNotFound, "hub %q has no method %q", h.ns, method)
	}
	return h.self.Call(ctx, method, params, bc)
}

// Schema implements Activation.
func (h *BasicHub) Schema() *schema.Activation { return h.doc }

// Children implements Hub.
func (h *BasicHub) Children() []schema.ChildSummary { return h.doc.Children }

// Child implements Hub.
func (h *BasicHub) Child(namespace string) (Activation, bool) {
	c, ok := h.index[namespace]
	return c, ok
}

// NewDynamicHub builds a hub whose children are derived per lookup. list
// returns the ordered child summaries for schema emission; lookup returns
// the child owning a namespace. Children must be cheap to re-derive;
// identity is by namespace, not object.
func NewDynamicHub(
	ns, version, desc string,
	list func() []schema.ChildSummary,
	lookup func(namespace string) (Activation, bool),
) *DynamicHub {
	return &DynamicHub{ns: ns, version: version, desc: desc, list: list, lookup: lookup}
}

// Namespace implements Activation.
func (h *DynamicHub) Namespace() string { return h.ns }

// Version implements Activation.
func (h *DynamicHub) Version() string { return h.version }

// Description implements Activation.
func (h *DynamicHub) Description() string { return h.desc }

// MethodNames implements Activation. Dynamic hubs own no methods of their
// own.
func (h *DynamicHub) MethodNames() []string { return nil }

// Call implements Activation.
func (h *DynamicHub) Call(_ context.Context, method string, _ json.RawMessage, _ *bidi.Channel) (*stream.Reader, error) {
	return nil, Errorf(CodeMethodNotFound, "dynamic hub %q has no method %q", h.ns, method)
}

// Schema implements Activation. The document is recomputed per call so the
// hash tracks the current child set.
func (h *DynamicHub) Schema() *schema.Activation {
	doc := &schema.Activation{
		Namespace:   h.ns,
		Version:     h.version,
		Description: h.desc,
		Children:    h.list(),
	}
	return doc.Finalize()
}

// Children implements Hub.
func (h *DynamicHub) Children() []schema.ChildSummary { return h.list() }

// Child implements Hub.
func (h *DynamicHub) Child(namespace string) (Activation, bool) { return h.lookup(namespace) }
