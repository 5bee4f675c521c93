// Package subscribe implements the duplex subscription transport: the
// client opens a subscription to (path, params) and the connection then
// carries both server-to-client stream items and client-to-server
// messages (responses, cancels) for any number of concurrent
// subscriptions.
//
// Messages are JSON documents discriminated on "type". Server items carry
// the owning subscription id in "subscription"; client messages address a
// subscription with "id".
package subscribe

import (
	"encoding/json"
	"fmt"

	"github.com/plexuskit/plexus/runtime/item"
)

type (
	// clientMessage is any inbound client-to-server message.
	clientMessage struct {
		// Type is one of "subscribe", "response", "cancel", "hash".
		Type string `json:"type"`
		// ID is the client-chosen subscription identifier.
		ID string `json:"id,omitempty"`
		// Path and Params open a subscription.
		Path   string          `json:"path,omitempty"`
		Params json.RawMessage `json:"params,omitempty"`
		// RequestID and Payload deliver a bidirectional response.
		RequestID string          `json:"request_id,omitempty"`
		Payload   json.RawMessage `json:"payload,omitempty"`
	}

	// hashMessage answers a client hash probe.
	hashMessage struct {
		Type string `json:"type"`
		Hash string `json:"hash"`
	}
)

// Client message types.
const (
	// TypeSubscribe opens a subscription to (path, params).
	TypeSubscribe = "subscribe"
	// TypeResponse delivers a bidirectional response.
	TypeResponse = "response"
	// TypeCancel cancels the subscription's call.
	TypeCancel = "cancel"
	// TypeHash asks for the root content hash.
	TypeHash = "hash"
)

// encodeServerItem renders a stream item as a subscription message: the
// item's wire form with the subscription id injected.
func encodeServerItem(subID string, it item.Item) ([]byte, error) {
	raw, err := item.Encode(it)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["subscription"] = subID
	return json.Marshal(m)
}

// encodeSubError renders a subscription-level failure (bad subscribe,
// dispatch rejection) as an error message followed by the caller writing
// a done message.
func encodeSubError(subID, message, code string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":         string(item.KindError),
		"subscription": subID,
		"message":      message,
		"code":         code,
		"recoverable":  false,
	})
}

// encodeSubDone renders the terminal done message for a subscription that
// never produced a stream.
func encodeSubDone(subID string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":         string(item.KindDone),
		"subscription": subID,
	})
}

// encodeHash renders the root content hash answer.
func encodeHash(hash string) ([]byte, error) {
	return json.Marshal(hashMessage{Type: TypeHash, Hash: hash})
}

func decodeClientMessage(data []byte) (clientMessage, error) {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return clientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	if m.Type == "" {
		return clientMessage{}, fmt.Errorf("client message missing type")
	}
	return m, nil
}
