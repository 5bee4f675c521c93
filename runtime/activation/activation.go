// Package activation defines the endpoint contract of the plexus runtime
// and the routing over the activation tree. An activation is a named node
// exposing methods that return streams; hubs additionally own ordered
// children, forming the dot-path namespace clients address.
//
// Activations are constructed at server startup and treated as immutable
// for the process lifetime; routing is pure and safe for concurrent use.
package activation

import (
	"context"
	"encoding/json"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/schema"
	"github.com/plexuskit/plexus/runtime/stream"
)

type (
	// Activation is the contract every endpoint node satisfies. The three
	// variants (leaf, hub, dynamic) expose the identical surface; hubs
	// also implement Hub.
	Activation interface {
		// Namespace returns the node's local name: non-empty, dot-free.
		Namespace() string
		// Version returns the node's declared version string.
		Version() string
		// Description documents the node for clients.
		Description() string
		// MethodNames returns the ordered method names the node owns.
		// The reserved `schema` terminal is implicit and not listed.
		MethodNames() []string
		// Call dispatches the named method with the given parameter
		// document and returns the call's stream. The bidirectional
		// channel may be nil for unidirectional transports. Dispatch
		// failures are reported as a *DispatchError.
		Call(ctx context.Context, method string, params json.RawMessage, bc *bidi.Channel) (*stream.Reader, error)
		// Schema returns the node's schema document with child schemas
		// reduced to summaries (lazy descent).
		Schema() *schema.Activation
	}

	// Hub is an activation with children. Child lookup must be pure and
	// deterministic; dynamic hubs must return namespace-identical (and
	// therefore hash-identical) children on repeated lookups.
	Hub interface {
		Activation
		// Children returns the ordered child summaries.
		Children() []schema.ChildSummary
		// Child returns the activation owning the given next path
		// segment, or false when the segment is unknown.
		Child(namespace string) (Activation, bool)
	}
)

// SchemaMethod is the reserved terminal name implicitly provided by every
// activation.
const SchemaMethod = "schema"

// SchemaStream renders the activation's schema document as a single Data
// item followed by Done. walked is the ordered namespace path from root to
// the activation.
func SchemaStream(a Activation, walked []string) *stream.Reader {
	doc, err := json.Marshal(a.Schema())
	if err != nil {
		// Schema documents are plain structs; marshaling cannot fail.
		panic(err)
	}
	return stream.Single(Meta(walked, SchemaMethod), "application/json", doc)
}
