// Package echo is the canonical streaming example: a leaf activation
// whose dispatch table and schema are generated from the handler
// signatures by plexusgen.
package echo

//go:generate go run github.com/plexuskit/plexus/cmd/plexusgen -dir . -type EchoHandler -version 1.0.0

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plexuskit/plexus/runtime/stream"
)

// EchoHandler echoes messages back to the caller.
type EchoHandler struct{}

// Echo streams the message back count times.
//
// plexus:param message The text to echo back.
// plexus:param count How many copies to stream.
func (h *EchoHandler) Echo(ctx context.Context, w *stream.Writer, message string, count int) error {
	if count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", count)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := w.Data(ctx, "application/json", payload); err != nil {
			return err
		}
	}
	return nil
}

// Reverse returns the message reversed.
//
// plexus:param message The text to reverse.
func (h *EchoHandler) Reverse(ctx context.Context, message string) (string, error) {
	runes := []rune(message)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}
