package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashMethod computes the content hash over a method's behavioral surface:
// name, parameter schemas (name, schema, required), return schema and the
// streaming/bidirectional flags. Documentation does not participate, so two
// methods with identical behavior hash identically.
func HashMethod(m *Method) string {
	type hashedParam struct {
		Name     string          `json:"name"`
		Schema   json.RawMessage `json:"schema"`
		Required bool            `json:"required"`
	}
	params := make([]hashedParam, len(m.Params))
	for i, p := range m.Params {
		params[i] = hashedParam{Name: p.Name, Schema: p.Schema, Required: p.Required}
	}
	doc, _ := json.Marshal(map[string]any{
		"name":          m.Name,
		"params":        params,
		"return":        m.Return,
		"streaming":     m.Streaming,
		"bidirectional": m.Bidirectional,
	})
	return digest(doc)
}

// HashActivation computes the aggregate content hash: the canonical
// serialization of (namespace, version, ordered method hashes, ordered child
// summaries). Child summaries are already reduced to (namespace, hash), so
// the root hash changes iff any descendant changes.
func HashActivation(a *Activation) string {
	methods := make([]string, len(a.Methods))
	for i := range a.Methods {
		h := a.Methods[i].Hash
		if h == "" {
			h = HashMethod(&a.Methods[i])
		}
		methods[i] = h
	}
	doc, _ := json.Marshal(map[string]any{
		"namespace": a.Namespace,
		"version":   a.Version,
		"methods":   methods,
		"children":  a.Children,
	})
	return digest(doc)
}

// Finalize computes and stamps the hash of every method followed by the
// activation's aggregate hash. It returns the activation for chaining.
func (a *Activation) Finalize() *Activation {
	for i := range a.Methods {
		a.Methods[i].Hash = HashMethod(&a.Methods[i])
	}
	a.Hash = HashActivation(a)
	return a
}

func digest(doc []byte) string {
	canon, err := Canonicalize(doc)
	if err != nil {
		// doc is produced by json.Marshal above; canonicalization of
		// valid JSON cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:])
}
