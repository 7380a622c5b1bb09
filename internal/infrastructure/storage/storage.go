// Package storage provides meal photo archiving backends
package storage

import (
	"context"

	"github.com/nutriscan/tracker/internal/ports/outbound"
)

// NopImageStore discards images. It is used when archiving is disabled.
type NopImageStore struct{}

var _ outbound.ImageStore = NopImageStore{}

// Put returns an empty URL without storing anything
func (NopImageStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", nil
}

// Delete does nothing
func (NopImageStore) Delete(ctx context.Context, key string) error {
	return nil
}
