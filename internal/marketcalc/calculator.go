// Package marketcalc derives USD market metrics from canonical prices and
// raw on-chain balances. Every function is pure; outputs are WAD-scaled USD.
package marketcalc

import (
	"math/big"

	"marketscope/internal/model"
	"marketscope/internal/pricing"
)

// MarketCap values the total supply at the canonical price and converts it
// to USD. Zero whenever any factor is zero; monotonic in all of them.
func MarketCap(price, totalSupply, quoteUsdPrice *big.Int, assetDecimals, quotePriceDecimals uint8) *big.Int {
	if price == nil || totalSupply == nil || quoteUsdPrice == nil {
		return big.NewInt(0)
	}
	capInQuote := new(big.Int).Mul(price, totalSupply)
	capInQuote.Div(capInQuote, pricing.Pow10(assetDecimals))
	capInQuote.Mul(capInQuote, quoteUsdPrice)
	return capInQuote.Div(capInQuote, pricing.Pow10(quotePriceDecimals))
}

// Liquidity values both pool sides in USD and sums them. The asset side is
// valued in quote units at the canonical price and always converted through
// the feed; the quote side passes through at face value when it is already
// USD-denominated. Never negative.
func Liquidity(assetBalance, quoteBalance, price *big.Int, assetDecimals, quoteDecimals uint8, quoteUsdPrice *big.Int, quoteIsUsd bool, quotePriceDecimals uint8) *big.Int {
	assetSide := big.NewInt(0)
	if assetBalance != nil && price != nil {
		assetSide.Mul(assetBalance, price)
		assetSide.Div(assetSide, pricing.Pow10(assetDecimals))
	}
	assetSide = pricing.UsdFromQuotePrice(assetSide, quoteUsdPrice, quotePriceDecimals)

	quoteSide := big.NewInt(0)
	if quoteBalance != nil {
		quoteSide.Mul(quoteBalance, pricing.Wad)
		quoteSide.Div(quoteSide, pricing.Pow10(quoteDecimals))
	}
	if !quoteIsUsd {
		quoteSide = pricing.UsdFromQuotePrice(quoteSide, quoteUsdPrice, quotePriceDecimals)
	}

	total := assetSide.Add(assetSide, quoteSide)
	if total.Sign() < 0 {
		return big.NewInt(0)
	}
	return total
}

// Volume converts one swap's quote-side amount to USD. A swap has exactly
// one non-zero leg from the quote token's perspective; when both legs are
// zero the event is a no-op and the volume is exactly zero. When both are
// non-zero the inbound leg wins.
func Volume(amountIn, amountOut *big.Int, quoteDecimals uint8, quoteUsdPrice *big.Int, quoteIsUsd bool, quotePriceDecimals uint8) *big.Int {
	leg := pickLeg(amountIn, amountOut)
	if leg == nil {
		return big.NewInt(0)
	}

	usd := new(big.Int).Abs(leg)
	usd.Mul(usd, pricing.Wad)
	usd.Div(usd, pricing.Pow10(quoteDecimals))
	if quoteIsUsd {
		return usd
	}
	return pricing.UsdFromQuotePrice(usd, quoteUsdPrice, quotePriceDecimals)
}

func pickLeg(amountIn, amountOut *big.Int) *big.Int {
	if amountIn != nil && amountIn.Sign() != 0 {
		return amountIn
	}
	if amountOut != nil && amountOut.Sign() != 0 {
		return amountOut
	}
	return nil
}

// Compute bundles the three metrics for one swap against one pool snapshot.
func Compute(pool *model.Pool, price model.CanonicalPrice, quote model.QuoteInfo, quoteIn, quoteOut *big.Int) model.MarketMetrics {
	feed := quote.PriceUsd
	if feed == nil {
		feed = big.NewInt(0)
	}
	return model.MarketMetrics{
		MarketCapUsd: MarketCap(price.Value, pool.TotalSupply, feed, pool.AssetDecimals, quote.PriceDecimals),
		LiquidityUsd: Liquidity(pool.AssetBalance, pool.QuoteBalance, price.Value, pool.AssetDecimals, pool.QuoteDecimals, feed, quote.UsdDenominated, quote.PriceDecimals),
		VolumeUsd:    Volume(quoteIn, quoteOut, pool.QuoteDecimals, feed, quote.UsdDenominated, quote.PriceDecimals),
	}
}
