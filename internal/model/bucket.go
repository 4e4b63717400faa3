package model

import "math/big"

// Bucket is an OHLC/VWAP aggregate for one pool over one fixed-width window
// aligned to UTC-epoch boundaries. Buckets are created lazily on the first
// trade in their interval and are append-only afterwards.
type Bucket struct {
	ChainID     uint64 `json:"chain_id"`
	PoolAddress string `json:"pool_address"`
	WindowSecs  uint64 `json:"window_secs"`
	Start       uint64 `json:"start"`

	Open  *big.Int `json:"open"`
	High  *big.Int `json:"high"`
	Low   *big.Int `json:"low"`
	Close *big.Int `json:"close"`
	Vwap  *big.Int `json:"vwap"`

	VolumeUsd    *big.Int `json:"volume_usd"`
	VolumeToken0 *big.Int `json:"volume_token0"`
	VolumeToken1 *big.Int `json:"volume_token1"`
	FeesUsd      *big.Int `json:"fees_usd"`

	TxCount     uint64 `json:"tx_count"`
	BuyCount    uint64 `json:"buy_count"`
	SellCount   uint64 `json:"sell_count"`
	HolderCount uint64 `json:"holder_count"`
}

// Clone returns a deep copy so a bucket can be recomputed wholly before the
// stored state is replaced.
func (b *Bucket) Clone() *Bucket {
	if b == nil {
		return nil
	}
	out := *b
	out.Open = cloneBig(b.Open)
	out.High = cloneBig(b.High)
	out.Low = cloneBig(b.Low)
	out.Close = cloneBig(b.Close)
	out.Vwap = cloneBig(b.Vwap)
	out.VolumeUsd = cloneBig(b.VolumeUsd)
	out.VolumeToken0 = cloneBig(b.VolumeToken0)
	out.VolumeToken1 = cloneBig(b.VolumeToken1)
	out.FeesUsd = cloneBig(b.FeesUsd)
	return &out
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
