package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashIgnoresDocumentation(t *testing.T) {
	m1 := testMethod("echo")
	m2 := testMethod("echo")
	m2.Description = "totally different prose"
	m2.Params[0].Description = "documented"
	assert.Equal(t, HashMethod(&m1), HashMethod(&m2))
}

func TestHashTracksBehavior(t *testing.T) {
	base := testMethod("echo")

	renamed := testMethod("echo2")
	assert.NotEqual(t, HashMethod(&base), HashMethod(&renamed))

	retyped := testMethod("echo")
	retyped.Params[0].Schema = json.RawMessage(`{"type":"integer"}`)
	assert.NotEqual(t, HashMethod(&base), HashMethod(&retyped))

	flagged := testMethod("echo")
	flagged.Bidirectional = true
	assert.NotEqual(t, HashMethod(&base), HashMethod(&flagged))
}

func TestHashInsensitiveToSchemaKeyOrder(t *testing.T) {
	m1 := testMethod("echo")
	m1.Params[0].Schema = json.RawMessage(`{"type":"string","minLength":1}`)
	m2 := testMethod("echo")
	m2.Params[0].Schema = json.RawMessage(`{"minLength":1,"type":"string"}`)
	assert.Equal(t, HashMethod(&m1), HashMethod(&m2))
}

func TestFinalizeRollsChildHashesIntoRoot(t *testing.T) {
	leaf := &Activation{Namespace: "tree", Version: "1", Methods: []Method{testMethod("grow")}}
	leaf.Finalize()

	root := &Activation{
		Namespace: "arbor",
		Version:   "1",
		Children:  []ChildSummary{{Namespace: "tree", Hash: leaf.Hash}},
	}
	root.Finalize()
	before := root.Hash

	// Any descendant change changes the root.
	leaf.Methods = append(leaf.Methods, testMethod("prune"))
	leaf.Hash = ""
	leaf.Finalize()
	root.Children[0].Hash = leaf.Hash
	root.Finalize()
	require.NotEqual(t, before, root.Hash)

	// Removing the change restores the original hash.
	leaf.Methods = leaf.Methods[:1]
	leaf.Finalize()
	root.Children[0].Hash = leaf.Hash
	root.Finalize()
	assert.Equal(t, before, root.Hash)
}
