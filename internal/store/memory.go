package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"marketscope/internal/model"
)

// Memory is an in-process EntityStore used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	pools   map[string]model.Pool
	assets  map[string]model.Asset
	buckets map[string]model.Bucket
}

func NewMemory() *Memory {
	return &Memory{
		pools:   make(map[string]model.Pool),
		assets:  make(map[string]model.Asset),
		buckets: make(map[string]model.Bucket),
	}
}

func entityKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, strings.ToLower(address))
}

func bucketKey(b model.Bucket) string {
	return fmt.Sprintf("%d:%s:%d:%d", b.ChainID, strings.ToLower(b.PoolAddress), b.WindowSecs, b.Start)
}

func (m *Memory) FindPool(_ context.Context, chainID uint64, address string) (*model.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pool, ok := m.pools[entityKey(chainID, address)]
	if !ok {
		return nil, ErrNotFound
	}
	out := pool
	return &out, nil
}

func (m *Memory) InsertPool(_ context.Context, pool model.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[entityKey(pool.ChainID, pool.Address)] = pool
	return nil
}

func (m *Memory) UpdatePool(_ context.Context, chainID uint64, address string, patch model.PoolPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entityKey(chainID, address)
	pool, ok := m.pools[key]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&pool)
	m.pools[key] = pool
	return nil
}

func (m *Memory) FindAsset(_ context.Context, chainID uint64, address string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[entityKey(chainID, address)]
	if !ok {
		return nil, ErrNotFound
	}
	out := asset
	return &out, nil
}

func (m *Memory) FindCreatorCoin(_ context.Context, chainID uint64, address string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asset, ok := m.assets[entityKey(chainID, address)]
	if !ok || !asset.IsCreatorCoin || asset.PrimaryPool == "" {
		return nil, ErrNotFound
	}
	out := asset
	return &out, nil
}

func (m *Memory) InsertAsset(_ context.Context, asset model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[entityKey(asset.ChainID, asset.Address)] = asset
	return nil
}

func (m *Memory) UpdateAsset(_ context.Context, chainID uint64, address string, patch model.AssetPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entityKey(chainID, address)
	asset, ok := m.assets[key]
	if !ok {
		return ErrNotFound
	}
	patch.Apply(&asset)
	m.assets[key] = asset
	return nil
}

func (m *Memory) UpsertBucket(_ context.Context, bucket model.Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucketKey(bucket)] = bucket
	return nil
}

// Bucket returns a stored bucket for test assertions.
func (m *Memory) Bucket(chainID uint64, pool string, windowSecs, start uint64) (model.Bucket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[bucketKey(model.Bucket{ChainID: chainID, PoolAddress: pool, WindowSecs: windowSecs, Start: start})]
	return b, ok
}

// BucketCount returns the number of stored buckets.
func (m *Memory) BucketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
