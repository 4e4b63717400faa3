package model

import "math/big"

// Side is the trade direction from the asset's perspective.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SwapRecord is an immutable description of one trade. It is created once
// per swap event and never mutated afterwards.
type SwapRecord struct {
	ChainID     uint64   `json:"chain_id"`
	PoolAddress string   `json:"pool_address"`
	Asset       string   `json:"asset"`
	Quote       string   `json:"quote"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint64   `json:"log_index"`
	Timestamp   uint64   `json:"timestamp"`
	Side        Side     `json:"side"`
	Amount0     *big.Int `json:"amount0"`
	Amount1     *big.Int `json:"amount1"`
	// PriceWad is the canonical 18-decimal price at execution.
	PriceWad *big.Int `json:"price_wad"`
	FeesUsd  *big.Int `json:"fees_usd"`
}
