// Package schema defines the introspection documents published by every
// activation: parameter and method descriptions, activation summaries, the
// method-enum views used by clients, and the content-hash roll-up used for
// drift detection.
//
// Hashes are stable digests over a canonical serialization (see canonical.go)
// and are used for cache invalidation, never for security.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type (
	// Parameter describes one named method parameter.
	Parameter struct {
		// Name is the parameter name as it appears in the parameter
		// document.
		Name string `json:"name"`
		// Schema is the JSON Schema for the parameter value.
		Schema json.RawMessage `json:"schema"`
		// Required reports whether the parameter must be present.
		Required bool `json:"required"`
		// Description documents the parameter for clients.
		Description string `json:"description,omitempty"`
	}

	// Method describes one named operation on an activation. A Method is
	// immutable once built; Finalize computes its content hash.
	Method struct {
		Name        string      `json:"name"`
		Description string      `json:"description,omitempty"`
		Params      []Parameter `json:"params"`
		// Return is the JSON Schema for each Data item's payload.
		Return json.RawMessage `json:"return"`
		// Streaming reports whether the method emits multiple Data items.
		Streaming bool `json:"streaming"`
		// Bidirectional reports whether the method may issue Request
		// items and await client responses.
		Bidirectional bool `json:"bidirectional"`
		// Hash is the content hash over the method's behavioral surface.
		Hash string `json:"hash"`
	}

	// ChildSummary names one child activation of a hub together with its
	// aggregate content hash.
	ChildSummary struct {
		Namespace string `json:"namespace"`
		Hash      string `json:"hash"`
	}

	// Activation is the schema document returned by the reserved `schema`
	// terminal. Child schemas are never inlined; descent is lazy via the
	// child summaries.
	Activation struct {
		Namespace   string         `json:"namespace"`
		Version     string         `json:"version"`
		Description string         `json:"description,omitempty"`
		Methods     []Method       `json:"methods"`
		Children    []ChildSummary `json:"children,omitempty"`
		// Hash is the aggregate content hash: any change to any
		// descendant changes it.
		Hash string `json:"hash"`
	}
)

// ParamsObject builds the JSON Schema object describing a method's full
// parameter document: one property per parameter, required list per the
// Required flags, closed to unknown properties. This is the single source
// used both for publication and for dispatch-time validation.
func ParamsObject(m *Method) json.RawMessage {
	props := make(map[string]json.RawMessage, len(m.Params))
	var required []string
	for _, p := range m.Params {
		props[p.Name] = p.Schema
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// MethodEnum returns the whole-activation method enum: a one-of
// discriminating on method name, embedding each method's parameter schema
// under "params".
func MethodEnum(a *Activation) json.RawMessage {
	variants := make([]json.RawMessage, len(a.Methods))
	for i := range a.Methods {
		variants[i] = methodVariant(&a.Methods[i])
	}
	raw, _ := json.Marshal(map[string]any{"oneOf": variants})
	return raw
}

// MethodVariant returns the single discriminated variant for the named
// method. Unknown names yield an error enumerating the available methods.
func MethodVariant(a *Activation, name string) (json.RawMessage, error) {
	for i := range a.Methods {
		if a.Methods[i].Name == name {
			return methodVariant(&a.Methods[i]), nil
		}
	}
	names := make([]string, len(a.Methods))
	for i := range a.Methods {
		names[i] = a.Methods[i].Name
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown method %q; available: %s", name, strings.Join(names, ", "))
}

func methodVariant(m *Method) json.RawMessage {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method": map[string]any{"const": m.Name},
			"params": json.RawMessage(ParamsObject(m)),
		},
		"required":             []string{"method"},
		"additionalProperties": false,
	}
	if m.Description != "" {
		doc["description"] = m.Description
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// Validate checks the structural invariants of an activation schema:
// non-empty dot-free namespace, unique method names, unique child
// namespaces.
func (a *Activation) Validate() error {
	if a.Namespace == "" {
		return fmt.Errorf("activation namespace is empty")
	}
	if strings.Contains(a.Namespace, ".") {
		return fmt.Errorf("activation namespace %q contains a dot", a.Namespace)
	}
	seen := make(map[string]struct{}, len(a.Methods))
	for i := range a.Methods {
		name := a.Methods[i].Name
		if name == "" {
			return fmt.Errorf("activation %q has a method with an empty name", a.Namespace)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("activation %q declares method %q twice", a.Namespace, name)
		}
		seen[name] = struct{}{}
	}
	children := make(map[string]struct{}, len(a.Children))
	for _, c := range a.Children {
		if c.Namespace == "" || strings.Contains(c.Namespace, ".") {
			return fmt.Errorf("activation %q has invalid child namespace %q", a.Namespace, c.Namespace)
		}
		if _, ok := children[c.Namespace]; ok {
			return fmt.Errorf("activation %q declares child %q twice", a.Namespace, c.Namespace)
		}
		children[c.Namespace] = struct{}{}
	}
	return nil
}
