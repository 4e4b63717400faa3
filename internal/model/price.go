package model

import "math/big"

// CanonicalPrice is a protocol-independent price of one base unit of an
// asset, denominated in base units of its quote currency and scaled to 18
// decimals. Value == 0 is a valid "no liquidity" signal and must never be
// used as a divisor.
type CanonicalPrice struct {
	Value         *big.Int `json:"value"`
	BaseDecimals  uint8    `json:"base_decimals"`
	QuoteDecimals uint8    `json:"quote_decimals"`
}

// IsZero reports whether the price carries no liquidity signal.
func (p CanonicalPrice) IsZero() bool {
	return p.Value == nil || p.Value.Sign() == 0
}

// MarketMetrics holds USD-denominated market values, all scaled to 18 decimals.
type MarketMetrics struct {
	MarketCapUsd *big.Int `json:"market_cap_usd"`
	LiquidityUsd *big.Int `json:"liquidity_usd"`
	VolumeUsd    *big.Int `json:"volume_usd"`
}
