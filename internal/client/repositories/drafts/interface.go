// Package drafts persists queued story drafts in the local SQLite database.
package drafts

import (
	"context"

	"github.com/dmitrijs2005/storyqueue/internal/client/models"
)

type Repository interface {
	// Insert stores d and returns the id assigned by the database.
	// CreatedAt must already be set.
	Insert(ctx context.Context, d models.Draft) (int64, error)
	// List returns every draft in insertion order.
	List(ctx context.Context) ([]models.Draft, error)
	// Delete removes the draft with id. It reports whether a row existed.
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int, error)
}
