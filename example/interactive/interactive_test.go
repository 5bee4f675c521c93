package interactive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

// answer replies to stream requests with canned responses keyed by
// request type.
func answer(t *testing.T, r *stream.Reader, bc *bidi.Channel, responses map[string]item.Response) []item.Item {
	t.Helper()
	var items []item.Item
	for {
		select {
		case it := <-r.C():
			items = append(items, it)
			switch v := it.(type) {
			case item.Request:
				resp, ok := responses[item.RequestType(v.Req)]
				require.True(t, ok, "unexpected request type %s", item.RequestType(v.Req))
				require.NoError(t, bc.Deliver(v.ID, resp))
			case item.Done:
				return items
			}
		case <-time.After(5 * time.Second):
			t.Fatal("stream did not terminate")
		}
	}
}

func TestProvisionConfirmed(t *testing.T) {
	act, err := NewInteractiveActivation(&InteractiveHandler{})
	require.NoError(t, err)

	bc := bidi.New(true)
	r, err := act.Call(context.Background(), MethodProvision, json.RawMessage(`{"name":"db1"}`), bc)
	require.NoError(t, err)

	items := answer(t, r, bc, map[string]item.Response{
		"confirm": item.Confirmed{Value: true},
	})
	var data item.Data
	for _, it := range items {
		if d, ok := it.(item.Data); ok {
			data = d
		}
	}
	assert.JSONEq(t, `{"name":"db1","provisioned":true}`, string(data.Payload))
}

func TestProvisionDeclined(t *testing.T) {
	act, err := NewInteractiveActivation(&InteractiveHandler{})
	require.NoError(t, err)

	bc := bidi.New(true)
	r, err := act.Call(context.Background(), MethodProvision, json.RawMessage(`{"name":"db1"}`), bc)
	require.NoError(t, err)

	items := answer(t, r, bc, map[string]item.Response{
		"confirm": item.Confirmed{Value: false},
	})
	var data item.Data
	for _, it := range items {
		if d, ok := it.(item.Data); ok {
			data = d
		}
	}
	assert.JSONEq(t, `{"name":"db1","provisioned":false}`, string(data.Payload))
}

func TestProvisionWithoutBidirectionalTransport(t *testing.T) {
	act, err := NewInteractiveActivation(&InteractiveHandler{})
	require.NoError(t, err)

	// nil channel: dispatch substitutes an unsupported one.
	r, err := act.Call(context.Background(), MethodProvision, json.RawMessage(`{"name":"db1"}`), nil)
	require.NoError(t, err)

	var sawError bool
	for it := range r.C() {
		if e, ok := it.(item.Error); ok {
			sawError = true
			assert.Contains(t, e.Message, "interactive client")
		}
		if _, done := it.(item.Done); done {
			break
		}
	}
	assert.True(t, sawError)
}

func TestGreetShoutStyle(t *testing.T) {
	act, err := NewInteractiveActivation(&InteractiveHandler{})
	require.NoError(t, err)

	bc := bidi.New(true)
	r, err := act.Call(context.Background(), MethodGreet, nil, bc)
	require.NoError(t, err)

	items := answer(t, r, bc, map[string]item.Response{
		"prompt": item.Text{Value: "Ada"},
		"select": item.Selected{Values: []string{"shout"}},
	})
	var data item.Data
	for _, it := range items {
		if d, ok := it.(item.Data); ok {
			data = d
		}
	}
	assert.Equal(t, `"HELLO, Ada!"`, string(data.Payload))
}
