package echo

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

func drain(t *testing.T, r *stream.Reader) []item.Item {
	t.Helper()
	var items []item.Item
	for {
		select {
		case it := <-r.C():
			items = append(items, it)
			if _, done := it.(item.Done); done {
				return items
			}
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not terminate")
		}
	}
}

func TestEchoStreamsCountCopies(t *testing.T) {
	act, err := NewEchoActivation(&EchoHandler{})
	require.NoError(t, err)

	r, err := act.Call(context.Background(), MethodEcho, json.RawMessage(`{"message":"hi","count":3}`), nil)
	require.NoError(t, err)
	items := drain(t, r)
	require.Len(t, items, 4)
	for i := 0; i < 3; i++ {
		d := items[i].(item.Data)
		assert.Equal(t, `"hi"`, string(d.Payload))
		assert.Equal(t, "echo.echo", d.Meta.Method)
	}
}

func TestReverseWrapsSingleResult(t *testing.T) {
	act, err := NewEchoActivation(&EchoHandler{})
	require.NoError(t, err)

	r, err := act.Call(context.Background(), MethodReverse, json.RawMessage(`{"message":"abc"}`), nil)
	require.NoError(t, err)
	items := drain(t, r)
	require.Len(t, items, 2)
	assert.Equal(t, `"cba"`, string(items[0].(item.Data).Payload))
}

func TestEchoRejectsNegativeCount(t *testing.T) {
	act, err := NewEchoActivation(&EchoHandler{})
	require.NoError(t, err)

	r, err := act.Call(context.Background(), MethodEcho, json.RawMessage(`{"message":"hi","count":-1}`), nil)
	require.NoError(t, err)
	items := drain(t, r)
	e, ok := items[0].(item.Error)
	require.True(t, ok)
	assert.False(t, e.Recoverable)
}

func TestPublishedSchemaMatchesHandlers(t *testing.T) {
	act, err := NewEchoActivation(&EchoHandler{})
	require.NoError(t, err)

	doc := act.Schema()
	require.Len(t, doc.Methods, 2)
	assert.Equal(t, MethodEcho, doc.Methods[0].Name)
	assert.True(t, doc.Methods[0].Streaming)
	assert.Equal(t, MethodReverse, doc.Methods[1].Name)
	assert.False(t, doc.Methods[1].Streaming)
	assert.NotEmpty(t, doc.Hash)
}
