// Package item defines the stream item protocol: the typed items a call
// emits (data, progress, request, error, done), the request kinds a server
// may issue mid-stream, and the response payloads clients send back.
//
// Items are immutable after construction and safe to send concurrently.
// Transports marshal items into their wire form via Encode and decode client
// responses via DecodeResponse; the discriminator field is always "type".
package item

import (
	"encoding/json"
	"fmt"
	"time"
)

type (
	// Meta carries the provenance stamped on every item: the fully
	// qualified method name and the ordered activation path from root.
	Meta struct {
		// Method is the fully qualified method name, e.g. "echo.echo".
		Method string `json:"method"`
		// Path is the ordered list of activation namespaces from the
		// root hub to the owning activation.
		Path []string `json:"path"`
	}

	// Item is one element of a call's outbound stream. Exactly one Done
	// terminates every stream; transports discard anything after it.
	Item interface {
		// Kind returns the wire discriminator for this item.
		Kind() Kind
		// Metadata returns the provenance stamped on the item.
		Metadata() Meta
	}

	// Kind enumerates the wire discriminators for stream items.
	Kind string

	// Data is a typed result chunk. Payload validates against the owning
	// method's return schema.
	Data struct {
		Meta        Meta
		ContentType string
		Payload     json.RawMessage
	}

	// Progress is an advisory, non-terminal status update.
	Progress struct {
		Meta    Meta
		Message string
		// Fraction, when set, is the completed share in [0,1].
		Fraction *float64
	}

	// Error reports a failure. When Recoverable is true the stream may
	// continue; otherwise a Done must follow promptly.
	Error struct {
		Meta        Meta
		Message     string
		Code        string
		Recoverable bool
	}

	// Request asks the client for input mid-stream. The client answers by
	// delivering a Response with the matching ID through the transport's
	// reverse direction.
	Request struct {
		Meta Meta
		// ID is the per-call unique request identifier.
		ID string
		// Req describes what is being asked of the client.
		Req RequestKind
		// Timeout bounds how long the server waits for the response.
		Timeout time.Duration
	}

	// Done terminates the stream. Exactly one Done is emitted per stream.
	Done struct {
		Meta Meta
	}
)

const (
	// KindData marks a typed result chunk.
	KindData Kind = "data"
	// KindProgress marks an advisory progress update.
	KindProgress Kind = "progress"
	// KindRequest marks a server-to-client input request.
	KindRequest Kind = "request"
	// KindError marks a failure report.
	KindError Kind = "error"
	// KindDone marks stream termination.
	KindDone Kind = "done"
)

// Kind implements Item.
func (Data) Kind() Kind     { return KindData }
func (Progress) Kind() Kind { return KindProgress }
func (Request) Kind() Kind  { return KindRequest }
func (Error) Kind() Kind    { return KindError }
func (Done) Kind() Kind     { return KindDone }

// Metadata implements Item.
func (d Data) Metadata() Meta     { return d.Meta }
func (p Progress) Metadata() Meta { return p.Meta }
func (r Request) Metadata() Meta  { return r.Meta }
func (e Error) Metadata() Meta    { return e.Meta }
func (d Done) Metadata() Meta     { return d.Meta }

// wireItem is the flattened wire form of every item kind. Optional fields
// are omitted so each kind serializes only what it carries.
type wireItem struct {
	Type        Kind            `json:"type"`
	Meta        Meta            `json:"meta"`
	ContentType string          `json:"content_type,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Message     string          `json:"message,omitempty"`
	Fraction    *float64        `json:"fraction,omitempty"`
	Code        string          `json:"code,omitempty"`
	Recoverable bool            `json:"recoverable,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	RequestType string          `json:"request_type,omitempty"`
	Request     json.RawMessage `json:"request,omitempty"`
	TimeoutMS   int64           `json:"timeout_ms,omitempty"`
}

// Encode marshals an item into its wire JSON form.
func Encode(it Item) ([]byte, error) {
	w := wireItem{Type: it.Kind(), Meta: it.Metadata()}
	switch v := it.(type) {
	case Data:
		w.ContentType = v.ContentType
		w.Payload = v.Payload
	case Progress:
		w.Message = v.Message
		w.Fraction = v.Fraction
	case Error:
		w.Message = v.Message
		w.Code = v.Code
		w.Recoverable = v.Recoverable
	case Request:
		w.RequestID = v.ID
		w.RequestType = v.Req.requestType()
		raw, err := json.Marshal(v.Req)
		if err != nil {
			return nil, fmt.Errorf("encode request kind: %w", err)
		}
		w.Request = raw
		w.TimeoutMS = v.Timeout.Milliseconds()
	case Done:
	default:
		return nil, fmt.Errorf("unknown item kind %q", it.Kind())
	}
	return json.Marshal(w)
}

// Decode unmarshals wire JSON into the corresponding item.
func Decode(data []byte) (Item, error) {
	var w wireItem
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	switch w.Type {
	case KindData:
		return Data{Meta: w.Meta, ContentType: w.ContentType, Payload: w.Payload}, nil
	case KindProgress:
		return Progress{Meta: w.Meta, Message: w.Message, Fraction: w.Fraction}, nil
	case KindError:
		return Error{Meta: w.Meta, Message: w.Message, Code: w.Code, Recoverable: w.Recoverable}, nil
	case KindRequest:
		kind, err := decodeRequestKind(w.RequestType, w.Request)
		if err != nil {
			return nil, err
		}
		return Request{
			Meta:    w.Meta,
			ID:      w.RequestID,
			Req:     kind,
			Timeout: time.Duration(w.TimeoutMS) * time.Millisecond,
		}, nil
	case KindDone:
		return Done{Meta: w.Meta}, nil
	default:
		return nil, fmt.Errorf("unknown item type %q", w.Type)
	}
}
