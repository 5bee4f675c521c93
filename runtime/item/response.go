package item

import (
	"encoding/json"
	"fmt"
)

type (
	// Response is a client answer to an outstanding Request. The concrete
	// payloads mirror the request kinds; Cancelled and TimedOut are
	// transport-injected sentinels.
	Response interface {
		responseType() string
	}

	// Confirmed answers a Confirm request.
	Confirmed struct {
		Value bool `json:"value"`
	}

	// Text answers a Prompt request.
	Text struct {
		Value string `json:"value"`
	}

	// Selected answers a Select request with the chosen option values.
	Selected struct {
		Values []string `json:"values"`
	}

	// CustomResponse answers a Custom request with an opaque payload.
	CustomResponse struct {
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	// Cancelled reports that the client declined the request.
	Cancelled struct{}

	// TimedOut reports that the per-request timer expired before a
	// response arrived. The runtime signals its own timer expiry with
	// bidi.ErrTimeout and does not construct this value; it reaches a
	// handler only when a delivered response decodes to it.
	TimedOut struct{}
)

const (
	responseTypeConfirmed = "confirmed"
	responseTypeText      = "text"
	responseTypeSelected  = "selected"
	responseTypeCustom    = "custom"
	responseTypeCancelled = "cancelled"
	responseTypeTimeout   = "timeout"
)

func (Confirmed) responseType() string      { return responseTypeConfirmed }
func (Text) responseType() string           { return responseTypeText }
func (Selected) responseType() string       { return responseTypeSelected }
func (CustomResponse) responseType() string { return responseTypeCustom }
func (Cancelled) responseType() string      { return responseTypeCancelled }
func (TimedOut) responseType() string       { return responseTypeTimeout }

// ResponseType returns the wire discriminator for the given response.
func ResponseType(r Response) string { return r.responseType() }

// wireResponse is the flattened wire form of a response payload.
type wireResponse struct {
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Values  []string        `json:"values,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeResponse marshals a response payload into its wire JSON form.
func EncodeResponse(r Response) ([]byte, error) {
	w := wireResponse{Type: r.responseType()}
	switch v := r.(type) {
	case Confirmed:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	case Text:
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	case Selected:
		w.Values = v.Values
	case CustomResponse:
		w.Payload = v.Payload
	case Cancelled, TimedOut:
	default:
		return nil, fmt.Errorf("unknown response type %q", r.responseType())
	}
	return json.Marshal(w)
}

// DecodeResponse unmarshals wire JSON into the corresponding response payload.
func DecodeResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch w.Type {
	case responseTypeConfirmed:
		var v bool
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, fmt.Errorf("decode confirmed value: %w", err)
		}
		return Confirmed{Value: v}, nil
	case responseTypeText:
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, fmt.Errorf("decode text value: %w", err)
		}
		return Text{Value: v}, nil
	case responseTypeSelected:
		return Selected{Values: w.Values}, nil
	case responseTypeCustom:
		return CustomResponse{Payload: w.Payload}, nil
	case responseTypeCancelled:
		return Cancelled{}, nil
	case responseTypeTimeout:
		return TimedOut{}, nil
	default:
		return nil, fmt.Errorf("unknown response type %q", w.Type)
	}
}
