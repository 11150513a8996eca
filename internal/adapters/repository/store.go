// Package repository defines the remote document store contract used as
// the score ledger, its error kinds, and process-local implementations.
package repository

import (
	"context"

	"github.com/okian/leaderboard/internal/domain/model"
)

// Store is the remote document store treated as a key-value database: the
// slug is the key and the content carries the encoded score pair.
//
// The contract offers no compare-and-swap. Update overwrites content
// unconditionally, so two read-modify-write cycles on the same record can
// race and the last Update wins.
type Store interface {
	// GetBySlug returns the record with the given slug, or ErrNotFound.
	GetBySlug(ctx context.Context, slug string) (model.Record, error)

	// Create adds a record. It returns ErrConflict when the store can tell
	// the slug is taken.
	Create(ctx context.Context, title, slug, content string) (model.Record, error)

	// Update replaces the content of record id.
	Update(ctx context.Context, id, content string) (model.Record, error)

	// List returns one page (1-based) of records and the total found-count.
	List(ctx context.Context, pageSize, page int) (model.Page, error)
}
