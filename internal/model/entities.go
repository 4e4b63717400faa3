package model

import "math/big"

// Protocol identifies the AMM generation a pool belongs to.
type Protocol string

const (
	// ProtocolV2 is a constant-product pool priced from reserves.
	ProtocolV2 Protocol = "v2"
	// ProtocolV3 is a concentrated-liquidity pool priced from sqrtPriceX96.
	ProtocolV3 Protocol = "v3"
	// ProtocolHookV1 is the first hook generation; swaps report cumulative
	// quote-side proceeds instead of per-swap deltas.
	ProtocolHookV1 Protocol = "hook_v1"
	// ProtocolHookV2 is the singleton-manager hook generation.
	ProtocolHookV2 Protocol = "hook_v2"
)

// Pool is the persisted pool entity projection used by the engine.
type Pool struct {
	ChainID       uint64   `json:"chain_id"`
	Address       string   `json:"address"`
	Protocol      Protocol `json:"protocol"`
	Asset         string   `json:"asset"`
	Quote         string   `json:"quote"`
	AssetDecimals uint8    `json:"asset_decimals"`
	QuoteDecimals uint8    `json:"quote_decimals"`
	IsAssetToken0 bool     `json:"is_asset_token0"`

	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	AssetBalance *big.Int `json:"asset_balance"`
	QuoteBalance *big.Int `json:"quote_balance"`
	TotalSupply  *big.Int `json:"total_supply"`
	// Proceeds is the cumulative quote-side proceeds reported by hook_v1
	// pools; swap direction there is inferred from its movement.
	Proceeds *big.Int `json:"proceeds"`

	PriceWad     *big.Int `json:"price_wad"`
	MarketCapUsd *big.Int `json:"market_cap_usd"`
	LiquidityUsd *big.Int `json:"liquidity_usd"`
	VolumeUsd    *big.Int `json:"volume_usd"`
	HolderCount  uint64   `json:"holder_count"`

	CreatedAtBlock uint64 `json:"created_at_block"`
	CreatedAt      uint64 `json:"created_at"`
}

// PoolPatch is a partial pool update; nil fields are left untouched.
type PoolPatch struct {
	SqrtPriceX96 *big.Int
	AssetBalance *big.Int
	QuoteBalance *big.Int
	TotalSupply  *big.Int
	Proceeds     *big.Int
	PriceWad     *big.Int
	MarketCapUsd *big.Int
	LiquidityUsd *big.Int
	VolumeUsd    *big.Int
	HolderCount  *uint64
}

// Apply merges non-nil patch fields into the pool.
func (p *PoolPatch) Apply(pool *Pool) {
	if p == nil || pool == nil {
		return
	}
	if p.SqrtPriceX96 != nil {
		pool.SqrtPriceX96 = p.SqrtPriceX96
	}
	if p.AssetBalance != nil {
		pool.AssetBalance = p.AssetBalance
	}
	if p.QuoteBalance != nil {
		pool.QuoteBalance = p.QuoteBalance
	}
	if p.TotalSupply != nil {
		pool.TotalSupply = p.TotalSupply
	}
	if p.Proceeds != nil {
		pool.Proceeds = p.Proceeds
	}
	if p.PriceWad != nil {
		pool.PriceWad = p.PriceWad
	}
	if p.MarketCapUsd != nil {
		pool.MarketCapUsd = p.MarketCapUsd
	}
	if p.LiquidityUsd != nil {
		pool.LiquidityUsd = p.LiquidityUsd
	}
	if p.VolumeUsd != nil {
		pool.VolumeUsd = p.VolumeUsd
	}
	if p.HolderCount != nil {
		pool.HolderCount = *p.HolderCount
	}
}

// Asset is the persisted asset entity projection.
type Asset struct {
	ChainID         uint64   `json:"chain_id"`
	Address         string   `json:"address"`
	Symbol          string   `json:"symbol"`
	Decimals        uint8    `json:"decimals"`
	IsCreatorCoin   bool     `json:"is_creator_coin"`
	PrimaryPool     string   `json:"primary_pool"`
	PriceWad        *big.Int `json:"price_wad"`
	MarketCapUsd    *big.Int `json:"market_cap_usd"`
	LiquidityUsd    *big.Int `json:"liquidity_usd"`
	VolumeUsd       *big.Int `json:"volume_usd"`
	PercentChange24 string   `json:"percent_change_24h"`
	UpdatedAt       uint64   `json:"updated_at"`
}

// AssetPatch is a partial asset update; nil fields are left untouched.
type AssetPatch struct {
	PriceWad        *big.Int
	MarketCapUsd    *big.Int
	LiquidityUsd    *big.Int
	VolumeUsd       *big.Int
	PercentChange24 *string
	UpdatedAt       *uint64
}

// Apply merges non-nil patch fields into the asset.
func (p *AssetPatch) Apply(asset *Asset) {
	if p == nil || asset == nil {
		return
	}
	if p.PriceWad != nil {
		asset.PriceWad = p.PriceWad
	}
	if p.MarketCapUsd != nil {
		asset.MarketCapUsd = p.MarketCapUsd
	}
	if p.LiquidityUsd != nil {
		asset.LiquidityUsd = p.LiquidityUsd
	}
	if p.VolumeUsd != nil {
		asset.VolumeUsd = p.VolumeUsd
	}
	if p.PercentChange24 != nil {
		asset.PercentChange24 = *p.PercentChange24
	}
	if p.UpdatedAt != nil {
		asset.UpdatedAt = *p.UpdatedAt
	}
}
