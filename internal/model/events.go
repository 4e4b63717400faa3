package model

import "encoding/json"

// EventRecord is the JSON shape the engine consumes from the event-delivery
// runtime. Numeric fields inside Decoded are strings to survive 256-bit
// values.
type EventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Protocol    Protocol        `json:"protocol"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
}

// V2SwapEventData is the decoded constant-product Swap payload.
type V2SwapEventData struct {
	Sender     string `json:"sender"`
	To         string `json:"to"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// V2SyncEventData is the decoded reserve sync payload.
type V2SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// V3SwapEventData is the decoded concentrated-liquidity Swap payload.
type V3SwapEventData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// HookSwapEventData is the decoded hook-generation Swap payload. hook_v1
// pools report TotalProceeds (cumulative quote-side proceeds); hook_v2 pools
// report per-swap deltas like v3 plus the fee actually charged.
type HookSwapEventData struct {
	PoolID        string `json:"pool_id"`
	Sender        string `json:"sender"`
	Amount0       string `json:"amount0"`
	Amount1       string `json:"amount1"`
	SqrtPriceX96  string `json:"sqrt_price_x96"`
	Liquidity     string `json:"liquidity"`
	Tick          int32  `json:"tick"`
	Fee           uint32 `json:"fee"`
	TotalProceeds string `json:"total_proceeds,omitempty"`
}

// LiquidityEventData is the decoded mint/burn payload shared by all
// generations; amounts are signed pool-side deltas.
type LiquidityEventData struct {
	Owner   string `json:"owner"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// PoolCreatedEventData announces a new pool with its token ordering.
type PoolCreatedEventData struct {
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Asset        string `json:"asset"`
	Quote        string `json:"quote"`
	Fee          uint32 `json:"fee"`
	SqrtPriceX96 string `json:"sqrt_price_x96,omitempty"`
}
