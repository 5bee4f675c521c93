package subscribe

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexuskit/plexus/runtime/activation"
	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/dispatch"
	"github.com/plexuskit/plexus/runtime/schema"
	"github.com/plexuskit/plexus/runtime/stream"
)

func buildRoot(t *testing.T) activation.Hub {
	t.Helper()
	echoTable, err := dispatch.NewTable(&dispatch.Method{
		Schema: schema.Method{
			Name: "echo",
			Params: []schema.Parameter{
				{Name: "message", Schema: json.RawMessage(`{"type":"string"}`), Required: true},
				{Name: "count", Schema: json.RawMessage(`{"type":"integer"}`), Required: true},
			},
			Return:    json.RawMessage(`{"type":"string"}`),
			Streaming: true,
		},
		Handler: func(ctx context.Context, _ *bidi.Channel, w *stream.Writer, params json.RawMessage) error {
			var args struct {
				Message string `json:"message"`
				Count   int    `json:"count"`
			}
			if err := json.Unmarshal(params, &args); err != nil {
				return err
			}
			payload, _ := json.Marshal(args.Message)
			for i := 0; i < args.Count; i++ {
				if err := w.Data(ctx, "application/json", payload); err != nil {
					return err
				}
			}
			return nil
		},
	})
	require.NoError(t, err)
	echoAct, err := dispatch.New("echo", "1.0.0", "", echoTable)
	require.NoError(t, err)

	interTable, err := dispatch.NewTable(
		&dispatch.Method{
			Schema: schema.Method{
				Name:          "confirm",
				Params:        []schema.Parameter{},
				Return:        json.RawMessage(`{}`),
				Streaming:     true,
				Bidirectional: true,
			},
			Handler: func(ctx context.Context, bc *bidi.Channel, w *stream.Writer, _ json.RawMessage) error {
				if err := w.Progress(ctx, "thinking", nil); err != nil {
					return err
				}
				ok, err := bc.Confirm(ctx, "Proceed?")
				if err != nil {
					return err
				}
				if !ok {
					return w.Data(ctx, "application/json", []byte(`"declined"`))
				}
				return w.Data(ctx, "application/json", []byte(`"ok"`))
			},
		},
		&dispatch.Method{
			Schema: schema.Method{
				Name:          "quick_confirm",
				Params:        []schema.Parameter{},
				Return:        json.RawMessage(`{}`),
				Streaming:     true,
				Bidirectional: true,
			},
			Handler: func(ctx context.Context, bc *bidi.Channel, w *stream.Writer, _ json.RawMessage) error {
				_, err := bc.Confirm(ctx, "Proceed?", bidi.WithTimeout(150*time.Millisecond))
				if err != nil {
					return fmt.Errorf("timeout")
				}
				return nil
			},
		},
		&dispatch.Method{
			Schema: schema.Method{
				Name:          "ask_name",
				Params:        []schema.Parameter{},
				Return:        json.RawMessage(`{}`),
				Streaming:     true,
				Bidirectional: true,
			},
			Handler: func(ctx context.Context, bc *bidi.Channel, w *stream.Writer, _ json.RawMessage) error {
				name, err := bc.Prompt(ctx, "Name?", bidi.WithTimeout(time.Minute))
				if err != nil {
					return err
				}
				return w.Data(ctx, "application/json", []byte(fmt.Sprintf("%q", name)))
			},
		},
	)
	require.NoError(t, err)
	interAct, err := dispatch.New("interactive", "1.0.0", "", interTable)
	require.NoError(t, err)

	return activation.NewHub("root", "1.0.0", "", activation.WithChildren(echoAct, interAct))
}

type testClient struct {
	t    *testing.T
	conn Conn
}

func startServer(t *testing.T) *testClient {
	t.Helper()
	serverEnd, clientEnd := Pipe()
	srv := NewServer(buildRoot(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.ServeConn(ctx, serverEnd)
	}()
	t.Cleanup(func() {
		cancel()
		clientEnd.Close()
		serverEnd.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})
	return &testClient{t: t, conn: clientEnd}
}

func (c *testClient) send(msg any) {
	c.t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(data))
}

func (c *testClient) recv() map[string]any {
	c.t.Helper()
	type read struct {
		data []byte
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		data, err := c.conn.ReadMessage()
		ch <- read{data, err}
	}()
	select {
	case r := <-ch:
		require.NoError(c.t, r.err)
		var msg map[string]any
		require.NoError(c.t, json.Unmarshal(r.data, &msg))
		return msg
	case <-time.After(5 * time.Second):
		c.t.Fatal("no message within deadline")
		return nil
	}
}

// recvType reads messages for the subscription until one of the wanted
// type arrives.
func (c *testClient) recvType(subID, typ string) map[string]any {
	c.t.Helper()
	for i := 0; i < 50; i++ {
		msg := c.recv()
		if msg["subscription"] == subID && msg["type"] == typ {
			return msg
		}
	}
	c.t.Fatalf("message of type %s never arrived", typ)
	return nil
}

func TestSubscriptionStreamsInEmissionOrder(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "echo.echo",
		Params: json.RawMessage(`{"message":"hi","count":3}`)})

	var kinds []string
	for {
		msg := client.recv()
		require.Equal(t, "s1", msg["subscription"])
		kinds = append(kinds, msg["type"].(string))
		if msg["type"] == "done" {
			break
		}
		assert.Equal(t, "hi", msg["payload"])
	}
	assert.Equal(t, []string{"data", "data", "data", "done"}, kinds)
}

func TestSubscribeUnknownPathYieldsErrorThenDone(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "missing.method"})

	msg := client.recvType("s1", "error")
	assert.Equal(t, "unknown_path", msg["code"])
	client.recvType("s1", "done")
}

func TestBidirectionalConfirm(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "interactive.confirm"})

	// Progress precedes the request; requests appear in issue order.
	progress := client.recvType("s1", "progress")
	assert.Equal(t, "thinking", progress["message"])

	req := client.recvType("s1", "request")
	assert.Equal(t, "confirm", req["request_type"])
	requestID := req["request_id"].(string)

	client.send(clientMessage{Type: TypeResponse, ID: "s1", RequestID: requestID,
		Payload: json.RawMessage(`{"type":"confirmed","value":true}`)})

	data := client.recvType("s1", "data")
	assert.Equal(t, "ok", data["payload"])
	client.recvType("s1", "done")
}

func TestBidirectionalTimeout(t *testing.T) {
	client := startServer(t)
	start := time.Now()
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "interactive.quick_confirm"})

	client.recvType("s1", "request")
	// Send no response: the pending entry expires and the handler
	// observes the timeout.
	errMsg := client.recvType("s1", "error")
	assert.Equal(t, "timeout", errMsg["message"])
	assert.NotEqual(t, true, errMsg["recoverable"])
	client.recvType("s1", "done")
	assert.WithinDuration(t, start.Add(150*time.Millisecond), time.Now(), 3*time.Second)
}

func TestCancelDuringRequest(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "interactive.ask_name"})
	client.recvType("s1", "request")

	client.send(clientMessage{Type: TypeCancel, ID: "s1"})

	// The pending waiter resolves with Cancelled and the stream ends
	// with Done within a bounded delay; no data items follow.
	for {
		msg := client.recv()
		if msg["subscription"] != "s1" {
			continue
		}
		require.NotEqual(t, "data", msg["type"])
		if msg["type"] == "done" {
			return
		}
	}
}

func TestHashProbe(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeHash})
	msg := client.recv()
	assert.Equal(t, TypeHash, msg["type"])
	assert.NotEmpty(t, msg["hash"])
}

func TestConcurrentSubscriptionsAreIndependent(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "a", Path: "echo.echo",
		Params: json.RawMessage(`{"message":"one","count":1}`)})
	client.send(clientMessage{Type: TypeSubscribe, ID: "b", Path: "echo.echo",
		Params: json.RawMessage(`{"message":"two","count":1}`)})

	seen := map[string]string{}
	for len(seen) < 2 {
		msg := client.recv()
		if msg["type"] == "data" {
			seen[msg["subscription"].(string)] = msg["payload"].(string)
		}
	}
	assert.Equal(t, map[string]string{"a": "one", "b": "two"}, seen)
}

func TestDuplicateSubscriptionIDRejected(t *testing.T) {
	client := startServer(t)
	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "interactive.ask_name"})
	client.recvType("s1", "request")

	client.send(clientMessage{Type: TypeSubscribe, ID: "s1", Path: "echo.echo",
		Params: json.RawMessage(`{"message":"x","count":1}`)})
	msg := client.recvType("s1", "error")
	assert.Equal(t, "invalid_params", msg["code"])
}
