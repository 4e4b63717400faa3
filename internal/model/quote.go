package model

import "math/big"

// QuoteClass classifies a quote currency address. The set is closed: every
// consumer switches over all four variants.
type QuoteClass uint8

const (
	// QuoteUnknown is an unrecognized quote currency. It resolves to the
	// sentinel near-zero USD price instead of failing.
	QuoteUnknown QuoteClass = iota
	// QuoteNative is the chain's wrapped gas token.
	QuoteNative
	// QuotePartner is one of the fixed recognized partner/stable tokens.
	QuotePartner
	// QuoteCreatorCoin is a token priced through its own pool against a
	// second quote currency.
	QuoteCreatorCoin
)

func (c QuoteClass) String() string {
	switch c {
	case QuoteNative:
		return "native"
	case QuotePartner:
		return "partner"
	case QuoteCreatorCoin:
		return "creator_coin"
	default:
		return "unknown"
	}
}

// QuoteInfo is the result of resolving a quote currency address.
// PriceUsd is nil only when no timestamp was supplied (metadata-only query);
// its scale is PriceDecimals, which follows the feed that produced it rather
// than a uniform 8- or 18-decimal assumption.
type QuoteInfo struct {
	Class         QuoteClass
	Partner       string // partner symbol, set only for QuotePartner
	PriceUsd      *big.Int
	QuoteDecimals uint8
	PriceDecimals uint8
	// UsdDenominated marks quotes whose base units are already USD-pegged,
	// letting volume/liquidity math skip the feed conversion.
	UsdDenominated bool
}

// TokenRef is the directory entry used for creator-coin resolution.
type TokenRef struct {
	Address       string
	Decimals      uint8
	IsCreatorCoin bool
	PoolAddress   string
}

// PoolRef is the minimal pool view needed to price a creator coin.
type PoolRef struct {
	Address       string
	SqrtPriceX96  *big.Int
	IsBaseToken0  bool
	QuoteAddress  string
	BaseDecimals  uint8
	QuoteDecimals uint8
}
