// Package bucket maintains rolling OHLC/VWAP aggregates over fixed
// UTC-epoch-aligned windows, plus the trailing-day price history used for
// percent-change.
package bucket

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"marketscope/internal/model"
	"marketscope/internal/store"
)

const (
	// DayWindow and QuarterWindow are the two bucket widths, in seconds.
	DayWindow     uint64 = 86_400
	QuarterWindow uint64 = 900
)

// Start floors a timestamp to its bucket boundary. Buckets align to fixed
// UTC-epoch boundaries, not to first-trade time.
func Start(timestamp, windowSecs uint64) uint64 {
	return timestamp - timestamp%windowSecs
}

// Aggregator owns the open buckets for all pools. A bucket is created lazily
// on the first trade inside its interval and accumulates every in-window
// trade afterwards; a new interval simply addresses a new key. Each update
// is computed wholly on a copy and persisted before replacing the held
// state, so a store failure leaves the prior bucket untouched.
type Aggregator struct {
	store   store.EntityStore
	open    map[string]*model.Bucket
	history *History
	logger  *zap.Logger
}

func NewAggregator(entityStore store.EntityStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:   entityStore,
		open:    make(map[string]*model.Bucket),
		history: NewHistory(),
		logger:  logger,
	}
}

// History exposes the trailing-day price history window.
func (a *Aggregator) History() *History {
	return a.history
}

// UpdateDayBucket folds one trade into the pool's 24-hour bucket.
func (a *Aggregator) UpdateDayBucket(ctx context.Context, rec model.SwapRecord, metrics model.MarketMetrics, holderCount uint64) error {
	return a.update(ctx, DayWindow, rec, metrics, holderCount)
}

// Update15MinuteBucket folds one trade into the pool's 15-minute bucket.
func (a *Aggregator) Update15MinuteBucket(ctx context.Context, rec model.SwapRecord, metrics model.MarketMetrics, holderCount uint64) error {
	return a.update(ctx, QuarterWindow, rec, metrics, holderCount)
}

func (a *Aggregator) update(ctx context.Context, windowSecs uint64, rec model.SwapRecord, metrics model.MarketMetrics, holderCount uint64) error {
	start := Start(rec.Timestamp, windowSecs)
	key := bucketKey(rec.ChainID, rec.PoolAddress, windowSecs)

	var next *model.Bucket
	current, ok := a.open[key]
	if ok && current.Start == start {
		next = applyTrade(current, rec, metrics, holderCount)
	} else {
		next = openBucket(rec, metrics, windowSecs, start, holderCount)
	}

	if err := a.store.UpsertBucket(ctx, *next); err != nil {
		return fmt.Errorf("upsert %ds bucket %s@%d: %w", windowSecs, rec.PoolAddress, start, err)
	}
	a.open[key] = next
	return nil
}

func bucketKey(chainID uint64, pool string, windowSecs uint64) string {
	return fmt.Sprintf("%d:%s:%d", chainID, strings.ToLower(pool), windowSecs)
}

// openBucket starts a bucket from its first trade: open=high=low=close=price
// and vwap seeded with the trade's own price.
func openBucket(rec model.SwapRecord, metrics model.MarketMetrics, windowSecs, start uint64, holderCount uint64) *model.Bucket {
	price := new(big.Int)
	if rec.PriceWad != nil {
		price.Set(rec.PriceWad)
	}
	b := &model.Bucket{
		ChainID:      rec.ChainID,
		PoolAddress:  rec.PoolAddress,
		WindowSecs:   windowSecs,
		Start:        start,
		Open:         price,
		High:         new(big.Int).Set(price),
		Low:          new(big.Int).Set(price),
		Close:        new(big.Int).Set(price),
		Vwap:         new(big.Int).Set(price),
		VolumeUsd:    big.NewInt(0),
		VolumeToken0: big.NewInt(0),
		VolumeToken1: big.NewInt(0),
		FeesUsd:      big.NewInt(0),
		HolderCount:  holderCount,
	}
	accumulate(b, rec, metrics)
	return b
}

// applyTrade computes the successor state on a copy; the input is not
// mutated.
func applyTrade(current *model.Bucket, rec model.SwapRecord, metrics model.MarketMetrics, holderCount uint64) *model.Bucket {
	b := current.Clone()
	price := new(big.Int)
	if rec.PriceWad != nil {
		price.Set(rec.PriceWad)
	}

	// VWAP is recomputed before volume moves so the prior volume weights
	// the prior vwap.
	b.Vwap = nextVwap(b.Vwap, b.VolumeUsd, price, metrics.VolumeUsd)

	b.Close = price
	if price.Cmp(b.High) > 0 {
		b.High = new(big.Int).Set(price)
	}
	if price.Cmp(b.Low) < 0 {
		b.Low = new(big.Int).Set(price)
	}
	b.HolderCount = holderCount
	accumulate(b, rec, metrics)
	return b
}

func accumulate(b *model.Bucket, rec model.SwapRecord, metrics model.MarketMetrics) {
	if metrics.VolumeUsd != nil {
		b.VolumeUsd.Add(b.VolumeUsd, metrics.VolumeUsd)
	}
	if rec.Amount0 != nil {
		b.VolumeToken0.Add(b.VolumeToken0, new(big.Int).Abs(rec.Amount0))
	}
	if rec.Amount1 != nil {
		b.VolumeToken1.Add(b.VolumeToken1, new(big.Int).Abs(rec.Amount1))
	}
	if rec.FeesUsd != nil {
		b.FeesUsd.Add(b.FeesUsd, rec.FeesUsd)
	}
	b.TxCount++
	switch rec.Side {
	case model.SideBuy:
		b.BuyCount++
	case model.SideSell:
		b.SellCount++
	}
}

// nextVwap folds one trade into the running volume-weighted average:
// (vwap*volumeBefore + price*tradeVolume) / (volumeBefore + tradeVolume),
// falling back to the trade's price when prior volume is zero.
func nextVwap(vwap, volumeBefore, price, tradeVolume *big.Int) *big.Int {
	if tradeVolume == nil || tradeVolume.Sign() == 0 {
		return new(big.Int).Set(vwap)
	}
	if volumeBefore == nil || volumeBefore.Sign() == 0 {
		return new(big.Int).Set(price)
	}
	num := new(big.Int).Mul(vwap, volumeBefore)
	num.Add(num, new(big.Int).Mul(price, tradeVolume))
	den := new(big.Int).Add(volumeBefore, tradeVolume)
	return num.Div(num, den)
}
