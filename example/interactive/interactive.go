// Package interactive demonstrates bidirectional calls: the handler asks
// the client for input mid-stream and reacts to the answers.
package interactive

//go:generate go run github.com/plexuskit/plexus/cmd/plexusgen -dir . -type InteractiveHandler -namespace interactive -version 1.0.0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/item"
	"github.com/plexuskit/plexus/runtime/stream"
)

// InteractiveHandler drives confirm/prompt/select dialogs with the caller.
type InteractiveHandler struct{}

// Provision asks for confirmation, then reports the outcome.
//
// plexus:param name Name of the resource to provision.
func (h *InteractiveHandler) Provision(ctx context.Context, bc *bidi.Channel, w *stream.Writer, name string) error {
	if err := w.Progress(ctx, "validating "+name, nil); err != nil {
		return err
	}
	ok, err := bc.Confirm(ctx, fmt.Sprintf("Provision %q?", name))
	switch {
	case errors.Is(err, bidi.ErrNotSupported):
		// Unidirectional transport: refuse rather than guess.
		return fmt.Errorf("provisioning %q requires an interactive client", name)
	case err != nil:
		return err
	case !ok:
		return w.Data(ctx, "application/json", mustJSON(map[string]any{"name": name, "provisioned": false}))
	}
	return w.Data(ctx, "application/json", mustJSON(map[string]any{"name": name, "provisioned": true}))
}

// Greet prompts for a name and picks a greeting style.
func (h *InteractiveHandler) Greet(ctx context.Context, bc *bidi.Channel, w *stream.Writer) error {
	name, err := bc.Prompt(ctx, "What is your name?", bidi.WithPlaceholder("Ada"))
	if err != nil {
		return err
	}
	styles, err := bc.Select(ctx, "Pick a style", []item.Option{
		{Value: "plain", Label: "Plain"},
		{Value: "shout", Label: "Enthusiastic"},
	}, false)
	if err != nil {
		return err
	}
	greeting := "Hello, " + name
	if len(styles) > 0 && styles[0] == "shout" {
		greeting = "HELLO, " + name + "!"
	}
	return w.Data(ctx, "application/json", mustJSON(greeting))
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
