// Package metadata persists small client-side settings (the bearer token,
// the worker client id) next to the drafts in the local database.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyAuthToken      = "auth_token"
	KeyWorkerClientID = "worker_client_id"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
