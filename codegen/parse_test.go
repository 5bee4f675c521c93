package codegen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSample(t *testing.T) *ActivationData {
	t.Helper()
	data, err := Parse(ParseOptions{Dir: "testdata/sample", Type: "VaultHandler"})
	require.NoError(t, err)
	return data
}

func TestParseDerivesActivationIdentity(t *testing.T) {
	data := parseSample(t)
	assert.Equal(t, "sample", data.Package)
	assert.Equal(t, "vault", data.Namespace)
	assert.Equal(t, "NewVaultActivation", data.ConstructorName)
	assert.Equal(t, "0.1.0", data.Version)
	assert.Equal(t, "VaultHandler manages stored secrets.", data.Description)
	assert.True(t, data.NeedsUUID)
	require.Len(t, data.Methods, 2)
}

func TestParseClassifiesSignatures(t *testing.T) {
	data := parseSample(t)

	store := data.Methods[0]
	assert.Equal(t, "store", store.Name)
	assert.False(t, store.Streaming)
	assert.False(t, store.Bidirectional)
	require.Len(t, store.Params, 3)

	watch := data.Methods[1]
	assert.Equal(t, "watch", watch.Name)
	assert.True(t, watch.Streaming)
	assert.True(t, watch.Bidirectional)
	require.Len(t, watch.Params, 1)
	assert.Equal(t, "prefix", watch.Params[0].Name)
}

func TestParseEmitsUUIDFormat(t *testing.T) {
	data := parseSample(t)
	owner := data.Methods[0].Params[0]
	assert.Equal(t, "owner", owner.Name)
	assert.True(t, owner.Required)
	assert.Equal(t, "Owner account id.", owner.Doc)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(owner.Schema), &doc))
	assert.Equal(t, "string", doc["type"])
	assert.Equal(t, "uuid", doc["format"])
}

func TestParseElidesNullableFromRequired(t *testing.T) {
	data := parseSample(t)
	note := data.Methods[0].Params[2]
	assert.Equal(t, "note", note.Name)
	assert.False(t, note.Required)
	// Nullable union: the value schema admits null.
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(note.Schema), &doc))
	assert.Contains(t, doc, "anyOf")
}

func TestParseDerivesReturnSchemaFromResultType(t *testing.T) {
	data := parseSample(t)

	var ret struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal([]byte(data.Methods[0].ReturnSchema), &ret))
	assert.Equal(t, "object", ret.Type)
	assert.Contains(t, ret.Properties, "id")
	assert.ElementsMatch(t, []string{"id", "version"}, ret.Required)

	// The plexus:item directive drives the streaming item schema.
	require.NoError(t, json.Unmarshal([]byte(data.Methods[1].ReturnSchema), &ret))
	assert.Equal(t, "object", ret.Type)
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Echo":      "echo",
		"RequestID": "request_id",
		"HTTPPort":  "http_port",
		"Reverse":   "reverse",
		"count":     "count",
	}
	for in, want := range cases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}
