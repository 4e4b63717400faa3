package handler

import (
	"context"
	"errors"

	"marketscope/internal/model"
	"marketscope/internal/store"
)

// EntityDirectory adapts the entity store to the lookups needed by the quote
// resolver. A token counts as a creator coin only when the store has it
// registered with a primary pool.
type EntityDirectory struct {
	store   store.EntityStore
	chainID uint64
}

func NewEntityDirectory(entityStore store.EntityStore, chainID uint64) *EntityDirectory {
	return &EntityDirectory{store: entityStore, chainID: chainID}
}

func (d *EntityDirectory) FindToken(ctx context.Context, address string) (*model.TokenRef, error) {
	asset, err := d.store.FindCreatorCoin(ctx, d.chainID, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	decimals := asset.Decimals
	if decimals == 0 {
		decimals = 18
	}
	return &model.TokenRef{
		Address:       asset.Address,
		Decimals:      decimals,
		IsCreatorCoin: true,
		PoolAddress:   asset.PrimaryPool,
	}, nil
}

func (d *EntityDirectory) FindPool(ctx context.Context, address string) (*model.PoolRef, error) {
	pool, err := d.store.FindPool(ctx, d.chainID, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.PoolRef{
		Address:       pool.Address,
		SqrtPriceX96:  pool.SqrtPriceX96,
		IsBaseToken0:  pool.IsAssetToken0,
		QuoteAddress:  pool.Quote,
		BaseDecimals:  pool.AssetDecimals,
		QuoteDecimals: pool.QuoteDecimals,
	}, nil
}
