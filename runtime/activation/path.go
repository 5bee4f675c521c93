package activation

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

// Split validates and splits a dot-path into its segments. A valid path
// has at least one segment and no empty segments.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, Errorf(CodeUnknownPath, "empty path")
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, Errorf(CodeUnknownPath, "path %q has an empty segment", path)
		}
	}
	return segs, nil
}

// Resolve walks the activation tree from root, consuming one segment per
// child lookup while at least two segments remain. It returns the owning
// activation, the terminal method name and the ordered namespace path
// walked from root. Resolution is pure and deterministic.
func Resolve(root Activation, path string) (owner Activation, method string, walked []string, err error) {
	segs, err := Split(path)
	if err != nil {
		return nil, "", nil, err
	}
	cur := root
	for len(segs) >= 2 {
		hub, ok := cur.(Hub)
		if !ok {
			return nil, "", nil, Errorf(CodeUnknownPath, "%q is not a hub; cannot descend into %q", strings.Join(walked, "."), segs[0])
		}
		child, ok := hub.Child(segs[0])
		if !ok {
			return nil, "", nil, Errorf(CodeUnknownPath, "no activation %q under %q", segs[0], strings.Join(walked, "."))
		}
		walked = append(walked, segs[0])
		cur = child
		segs = segs[1:]
	}
	return cur, segs[0], walked, nil
}

// Invoke resolves the dot-path and dispatches the terminal method. The
// reserved `schema` terminal is answered by the contract itself; all other
// methods route to the owner's call operation. The walked provenance is
// made available to the dispatch layer through the context.
func Invoke(ctx context.Context, root Activation, path string, params json.RawMessage, bc *bidi.Channel) (*stream.Reader, error) {
	owner, method, walked, err := Resolve(root, path)
	if err != nil {
		return nil, err
	}
	if method == SchemaMethod {
		return SchemaStream(owner, walked), nil
	}
	return owner.Call(WithPath(ctx, walked), method, params, bc)
}

// Meta builds the provenance stamped on a call's items: the full dotted
// method name and the ordered activation path from root.
func Meta(walked []string, method string) item.Meta {
	qualified := method
	if len(walked) > 0 {
		qualified = strings.Join(walked, ".") + "." + method
	}
	// Copy so later appends by the caller cannot alias the stamped path.
	path := make([]string, len(walked))
	copy(path, walked)
	return item.Meta{Method: qualified, Path: path}
}

type pathKey struct{}

// WithPath records the walked namespace path for the dispatch layer.
func WithPath(ctx context.Context, walked []string) context.Context {
	return context.WithValue(ctx, pathKey{}, walked)
}

// PathFrom returns the walked namespace path recorded by Invoke, or nil
// when the call was made directly on the activation.
func PathFrom(ctx context.Context) []string {
	walked, _ := ctx.Value(pathKey{}).([]string)
	return walked
}
