package item

import (
	"encoding/json"
	"fmt"
)

type (
	// RequestKind describes what a Request item asks of the client. The
	// concrete kinds are Confirm, Prompt, Select and Custom; the wire
	// discriminator is carried in the request_type envelope field.
	RequestKind interface {
		requestType() string
	}

	// Confirm asks the client for a yes/no decision.
	Confirm struct {
		// PromptText is the question shown to the user.
		PromptText string `json:"prompt"`
		// Default, when set, preselects an answer.
		Default *bool `json:"default,omitempty"`
	}

	// Prompt asks the client for free-form text.
	Prompt struct {
		Message string `json:"message"`
		// Default, when set, prefills the input.
		Default *string `json:"default,omitempty"`
		// Placeholder, when set, is shown in an empty input.
		Placeholder *string `json:"placeholder,omitempty"`
	}

	// Select asks the client to pick one or more options.
	Select struct {
		Message string   `json:"message"`
		Options []Option `json:"options"`
		// Multi permits selecting more than one option.
		Multi bool `json:"multi,omitempty"`
	}

	// Option is a single selectable choice.
	Option struct {
		Value       string  `json:"value"`
		Label       string  `json:"label"`
		Description *string `json:"description,omitempty"`
	}

	// Custom carries an application-defined request kind. PayloadSchema,
	// when present, describes the expected response payload.
	Custom struct {
		Name          string          `json:"name"`
		PayloadSchema json.RawMessage `json:"payload_schema,omitempty"`
	}
)

const (
	requestTypeConfirm = "confirm"
	requestTypePrompt  = "prompt"
	requestTypeSelect  = "select"
	requestTypeCustom  = "custom"
)

func (Confirm) requestType() string { return requestTypeConfirm }
func (Prompt) requestType() string  { return requestTypePrompt }
func (Select) requestType() string  { return requestTypeSelect }
func (Custom) requestType() string  { return requestTypeCustom }

// RequestType returns the wire discriminator for the given request kind.
func RequestType(k RequestKind) string { return k.requestType() }

func decodeRequestKind(typ string, raw json.RawMessage) (RequestKind, error) {
	switch typ {
	case requestTypeConfirm:
		var k Confirm
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("decode confirm request: %w", err)
		}
		return k, nil
	case requestTypePrompt:
		var k Prompt
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("decode prompt request: %w", err)
		}
		return k, nil
	case requestTypeSelect:
		var k Select
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("decode select request: %w", err)
		}
		return k, nil
	case requestTypeCustom:
		var k Custom
		if err := json.Unmarshal(raw, &k); err != nil {
			return nil, fmt.Errorf("decode custom request: %w", err)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unknown request type %q", typ)
	}
}
