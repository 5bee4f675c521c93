package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMethod(name string) Method {
	return Method{
		Name: name,
		Params: []Parameter{
			{Name: "message", Schema: json.RawMessage(`{"type":"string"}`), Required: true},
			{Name: "count", Schema: json.RawMessage(`{"type":"integer"}`), Required: false},
		},
		Return:    json.RawMessage(`{"type":"string"}`),
		Streaming: true,
	}
}

func TestParamsObject(t *testing.T) {
	m := testMethod("echo")
	var doc struct {
		Type                 string                     `json:"type"`
		Properties           map[string]json.RawMessage `json:"properties"`
		Required             []string                   `json:"required"`
		AdditionalProperties bool                       `json:"additionalProperties"`
	}
	require.NoError(t, json.Unmarshal(ParamsObject(&m), &doc))
	assert.Equal(t, "object", doc.Type)
	assert.Len(t, doc.Properties, 2)
	assert.Equal(t, []string{"message"}, doc.Required)
	assert.False(t, doc.AdditionalProperties)
}

func TestMethodEnumContainsExactlyTheMethodSet(t *testing.T) {
	a := &Activation{
		Namespace: "echo",
		Version:   "1.0.0",
		Methods:   []Method{testMethod("echo"), testMethod("reverse")},
	}
	var enum struct {
		OneOf []struct {
			Properties struct {
				Method struct {
					Const string `json:"const"`
				} `json:"method"`
				Params json.RawMessage `json:"params"`
			} `json:"properties"`
		} `json:"oneOf"`
	}
	require.NoError(t, json.Unmarshal(MethodEnum(a), &enum))
	require.Len(t, enum.OneOf, 2)
	assert.Equal(t, "echo", enum.OneOf[0].Properties.Method.Const)
	assert.Equal(t, "reverse", enum.OneOf[1].Properties.Method.Const)
	assert.NotEmpty(t, enum.OneOf[0].Properties.Params)
}

func TestMethodVariant(t *testing.T) {
	a := &Activation{
		Namespace: "echo",
		Methods:   []Method{testMethod("echo"), testMethod("reverse")},
	}

	variant, err := MethodVariant(a, "reverse")
	require.NoError(t, err)
	var doc struct {
		Properties struct {
			Method struct {
				Const string `json:"const"`
			} `json:"method"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(variant, &doc))
	assert.Equal(t, "reverse", doc.Properties.Method.Const)

	_, err = MethodVariant(a, "missing")
	require.Error(t, err)
	// The error enumerates the available methods.
	assert.Contains(t, err.Error(), "echo")
	assert.Contains(t, err.Error(), "reverse")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		doc  Activation
		ok   bool
	}{
		{"valid", Activation{Namespace: "echo", Methods: []Method{testMethod("echo")}}, true},
		{"empty namespace", Activation{}, false},
		{"dotted namespace", Activation{Namespace: "a.b"}, false},
		{"duplicate method", Activation{Namespace: "x", Methods: []Method{testMethod("m"), testMethod("m")}}, false},
		{"duplicate child", Activation{Namespace: "x", Children: []ChildSummary{
			{Namespace: "c", Hash: "h1"}, {Namespace: "c", Hash: "h2"},
		}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.doc.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCanonicalizeSortsKeysAndStripsWhitespace(t *testing.T) {
	canon, err := Canonicalize(json.RawMessage("{\n  \"b\": 1,\n  \"a\": [1, 2.50, \"x\"]\n}"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2.50,"x"],"b":1}`, string(canon))
}
