package codegen

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRendersValidGo(t *testing.T) {
	data := parseSample(t)
	src, err := Generate(data)
	require.NoError(t, err)

	fset := token.NewFileSet()
	_, err = parser.ParseFile(fset, "vault_handler_plexus.go", src, parser.ParseComments)
	require.NoError(t, err, "generated source must parse:\n%s", src)

	out := string(src)
	assert.True(t, strings.HasPrefix(out, "// Code generated by plexusgen. DO NOT EDIT."))
	assert.Contains(t, out, "package sample")
	assert.Contains(t, out, `MethodStore = "store"`)
	assert.Contains(t, out, `MethodWatch = "watch"`)
	assert.Contains(t, out, "func NewVaultActivation(h *VaultHandler, opts ...dispatch.Option)")
	// Bidirectional streaming methods receive the channel and the writer.
	assert.Contains(t, out, "h.Watch(ctx, bc, w, args.Prefix)")
	// Non-streaming methods wrap their result in a single Data item.
	assert.Contains(t, out, "dispatch.WriteJSON(ctx, w, res)")
	// UUID-typed arguments import the uuid package.
	assert.Contains(t, out, `"github.com/google/uuid"`)
	assert.Contains(t, out, "uuid.UUID")
}

func TestGenerateOmitsBidiContextFromSchema(t *testing.T) {
	data := parseSample(t)
	src, err := Generate(data)
	require.NoError(t, err)
	// The bidirectional context is a dispatch artifact, never a
	// published parameter.
	assert.NotContains(t, string(src), `"name":"bc"`)
	assert.Contains(t, string(src), "Bidirectional: true")
}

func TestOutputPath(t *testing.T) {
	path := OutputPath(ParseOptions{Dir: "x", Type: "VaultHandler"})
	assert.Equal(t, "x/vault_handler_plexus.go", path)
}
