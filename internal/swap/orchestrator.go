package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"marketscope/internal/bucket"
	"marketscope/internal/model"
	"marketscope/internal/poolcache"
	"marketscope/internal/store"
)

// Orchestrator sequences the dependent entity updates for one classified
// swap: the pool entity, the 15-minute bucket, and the asset entity. The
// three branches have no ordering dependency and run as independent
// concurrent operations; every branch failure is surfaced, joined.
type Orchestrator struct {
	store   store.EntityStore
	buckets *bucket.Aggregator
	cache   *poolcache.Cache
	logger  *zap.Logger
}

func NewOrchestrator(entityStore store.EntityStore, buckets *bucket.Aggregator, cache *poolcache.Cache, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:   entityStore,
		buckets: buckets,
		cache:   cache,
		logger:  logger,
	}
}

// ApplyUpdates fans out the three update operations and waits for all of
// them; failures from every branch come back joined so none is lost. The
// pool patch is computed up front so a branch failure never leaves
// half-applied values.
func (o *Orchestrator) ApplyUpdates(ctx context.Context, rec model.SwapRecord, metrics model.MarketMetrics, pool model.Pool) error {
	patch := poolPatch(rec, metrics, pool)

	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		errs[0] = o.updatePool(ctx, rec, patch)
	}()
	go func() {
		defer wg.Done()
		errs[1] = o.buckets.Update15MinuteBucket(ctx, rec, metrics, pool.HolderCount)
	}()
	go func() {
		defer wg.Done()
		errs[2] = o.upsertAsset(ctx, rec, metrics, pool)
	}()
	wg.Wait()

	return errors.Join(errs...)
}

// poolPatch folds the swap into the pool's running totals. Volume is
// cumulative; the rest replaces the previous value.
func poolPatch(rec model.SwapRecord, metrics model.MarketMetrics, pool model.Pool) model.PoolPatch {
	volume := new(big.Int)
	if pool.VolumeUsd != nil {
		volume.Set(pool.VolumeUsd)
	}
	volume.Add(volume, metrics.VolumeUsd)

	return model.PoolPatch{
		PriceWad:     rec.PriceWad,
		MarketCapUsd: metrics.MarketCapUsd,
		LiquidityUsd: metrics.LiquidityUsd,
		VolumeUsd:    volume,
	}
}

func (o *Orchestrator) updatePool(ctx context.Context, rec model.SwapRecord, patch model.PoolPatch) error {
	if err := o.store.UpdatePool(ctx, rec.ChainID, rec.PoolAddress, patch); err != nil {
		return fmt.Errorf("update pool %s: %w", rec.PoolAddress, err)
	}
	// Keep the hot copy aligned with what was just persisted.
	if o.cache != nil {
		o.cache.MergePartial(rec.ChainID, rec.PoolAddress, patch)
	}
	return nil
}

// upsertAsset is a try-update/fallback-create: the store has no atomic
// upsert on this path. Both outcomes converge to the same field values.
func (o *Orchestrator) upsertAsset(ctx context.Context, rec model.SwapRecord, metrics model.MarketMetrics, pool model.Pool) error {
	now := rec.Timestamp
	patch := model.AssetPatch{
		PriceWad:     rec.PriceWad,
		MarketCapUsd: metrics.MarketCapUsd,
		LiquidityUsd: metrics.LiquidityUsd,
		VolumeUsd:    metrics.VolumeUsd,
		UpdatedAt:    &now,
	}

	err := o.store.UpdateAsset(ctx, rec.ChainID, rec.Asset, patch)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("update asset %s: %w", rec.Asset, err)
	}

	o.logger.Debug("asset missing, creating", zap.String("asset", rec.Asset), zap.Uint64("chain", rec.ChainID))
	asset := model.Asset{
		ChainID:      rec.ChainID,
		Address:      rec.Asset,
		Decimals:     pool.AssetDecimals,
		PriceWad:     rec.PriceWad,
		MarketCapUsd: metrics.MarketCapUsd,
		LiquidityUsd: metrics.LiquidityUsd,
		VolumeUsd:    metrics.VolumeUsd,
		UpdatedAt:    now,
	}
	if err := o.store.InsertAsset(ctx, asset); err != nil {
		return fmt.Errorf("insert asset %s: %w", rec.Asset, err)
	}
	return nil
}
