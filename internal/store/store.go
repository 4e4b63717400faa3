// Package store defines the persisted-store boundary the engine writes
// through. The store is fallible and has no atomic upsert on the entity
// paths; callers that need create-or-update semantics must try the update
// and fall back to insert on ErrNotFound.
package store

import (
	"context"
	"errors"

	"marketscope/internal/model"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("store: entity not found")

// EntityStore is the persistence contract for pools, assets, and buckets.
type EntityStore interface {
	FindPool(ctx context.Context, chainID uint64, address string) (*model.Pool, error)
	InsertPool(ctx context.Context, pool model.Pool) error
	UpdatePool(ctx context.Context, chainID uint64, address string, patch model.PoolPatch) error

	FindAsset(ctx context.Context, chainID uint64, address string) (*model.Asset, error)
	// FindCreatorCoin returns the asset only when it is a registered
	// creator coin with a primary pool; ErrNotFound otherwise.
	FindCreatorCoin(ctx context.Context, chainID uint64, address string) (*model.Asset, error)
	InsertAsset(ctx context.Context, asset model.Asset) error
	UpdateAsset(ctx context.Context, chainID uint64, address string, patch model.AssetPatch) error

	UpsertBucket(ctx context.Context, bucket model.Bucket) error
}
