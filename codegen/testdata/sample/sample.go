// Package sample is a parse fixture for plexusgen.
package sample

import (
	"context"

	"github.com/google/uuid"

	"github.com/plexuskit/plexus/runtime/bidi"
	"github.com/plexuskit/plexus/runtime/stream"
)

// VaultHandler manages stored secrets.
type VaultHandler struct{}

// StoreResult reports a stored secret version.
type StoreResult struct {
	ID      uuid.UUID `json:"id"`
	Version int       `json:"version"`
	Note    *string   `json:"note,omitempty"`
}

// Store saves a secret under an owner.
//
// plexus:param owner Owner account id.
// plexus:param value Secret material.
func (h *VaultHandler) Store(ctx context.Context, owner uuid.UUID, value string, note *string) (StoreResult, error) {
	return StoreResult{}, nil
}

// Watch streams store events whose key matches prefix.
//
// plexus:item StoreResult
func (h *VaultHandler) Watch(ctx context.Context, bc *bidi.Channel, w *stream.Writer, prefix string) error {
	return nil
}
