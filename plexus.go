// Package plexus is an introspective RPC runtime. A server exposes a
// hierarchical tree of named activations; every method returns a stream of
// typed items, every activation publishes its own schema through the
// reserved `schema` terminal, and the root content hash lets clients
// detect drift without re-reading the tree.
//
// The runtime packages compose bottom-up: runtime/item defines the stream
// protocol, runtime/schema the introspection documents and hashes,
// runtime/activation the endpoint contract and routing, runtime/dispatch
// the validated method dispatch generated by plexusgen, and runtime/bidi
// the mid-stream server-to-client request channel. transport/toolcall and
// transport/subscribe bind the stream protocol onto the two supported
// wire shapes.
package plexus

import (
	"github.com/plexuskit/plexus/runtime/activation"
)

// Version is the runtime version reported by the root hub.
const Version = "0.1.0"

// NewRoot builds the root hub of an activation tree. The root is itself a
// hub named "root"; its namespace never appears in dot-paths.
func NewRoot(opts ...activation.HubOption) activation.Hub {
	return activation.NewHub("root", Version, "plexus root hub", opts...)
}

// Hash returns the aggregate content hash of the tree rooted at root. The
// hash changes iff any descendant activation changes.
func Hash(root activation.Activation) string {
	return root.Schema().Hash
}
