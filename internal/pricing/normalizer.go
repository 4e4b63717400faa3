// Package pricing converts protocol-native price representations into the
// canonical 18-decimal fixed-point price used everywhere else.
//
// Conventions: WAD (1e18) scales every fractional value held as an integer.
// A canonical price is WAD-scaled quote units per one unit of base asset.
// All arithmetic is arbitrary-precision; float64 never touches a price.
package pricing

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"marketscope/internal/model"
)

// ErrDivisionByZero signals a zero base-token reserve during reserve-based
// pricing. It is fatal to the single computation; the caller must skip the
// update for the current event.
var ErrDivisionByZero = errors.New("pricing: zero base reserve")

var (
	// Wad is the 18-decimal fixed-point unit.
	Wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// q192 scales a squared Q64.96 square-root price.
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)

	hundred = decimal.NewFromInt(100)
)

// Pow10 returns 10^n as a big integer.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// PriceFromSqrtRatio squares a Q64.96 square-root price and orients it so the
// result prices the base asset in quote units, normalized by both token
// decimal counts the same way PriceFromReserves is. The same market prices
// identically through either representation.
//
// A zero ratio yields a zero price, the "no liquidity" signal.
func PriceFromSqrtRatio(sqrtPriceX96 *big.Int, isBaseToken0 bool, baseDecimals, quoteDecimals uint8) model.CanonicalPrice {
	out := model.CanonicalPrice{
		Value:         big.NewInt(0),
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return out
	}

	// ratio is token1 raw units per token0 raw unit, scaled by 2^192.
	ratio := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	if isBaseToken0 {
		num := new(big.Int).Mul(ratio, Pow10(baseDecimals))
		num.Mul(num, Wad)
		den := new(big.Int).Mul(q192, Pow10(quoteDecimals))
		out.Value = num.Div(num, den)
		return out
	}
	num := new(big.Int).Mul(q192, Pow10(baseDecimals))
	num.Mul(num, Wad)
	den := new(big.Int).Mul(ratio, Pow10(quoteDecimals))
	out.Value = num.Div(num, den)
	return out
}

// PriceFromReserves prices the base asset from constant-product reserves,
// normalized so the result is independent of either token's raw decimal
// count. Returns ErrDivisionByZero when the base reserve is exactly zero.
func PriceFromReserves(baseReserve, quoteReserve *big.Int, baseDecimals, quoteDecimals uint8) (model.CanonicalPrice, error) {
	out := model.CanonicalPrice{
		Value:         big.NewInt(0),
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}
	if baseReserve == nil || baseReserve.Sign() == 0 {
		return out, ErrDivisionByZero
	}
	if quoteReserve == nil || quoteReserve.Sign() == 0 {
		return out, nil
	}

	// (quoteReserve / 10^quoteDecimals) / (baseReserve / 10^baseDecimals),
	// WAD-scaled.
	num := new(big.Int).Mul(quoteReserve, Pow10(baseDecimals))
	num.Mul(num, Wad)
	den := new(big.Int).Mul(baseReserve, Pow10(quoteDecimals))
	out.Value = num.Div(num, den)
	return out, nil
}

// UsdFromQuotePrice rescales a canonical quote-denominated price into USD by
// a feed price carrying quotePriceDecimals. When the quote already is USD
// this is the identity (feed price 10^quotePriceDecimals).
func UsdFromQuotePrice(price, quoteUsdPrice *big.Int, quotePriceDecimals uint8) *big.Int {
	if price == nil || quoteUsdPrice == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(price, quoteUsdPrice)
	return out.Div(out, Pow10(quotePriceDecimals))
}

// PercentChange returns the relative change from previous to current in
// percent. A zero previous value yields zero by definition, not an error, so
// freshly created pools don't amplify division noise.
func PercentChange(current, previous *big.Int) decimal.Decimal {
	if previous == nil || previous.Sign() == 0 || current == nil {
		return decimal.Zero
	}
	cur := decimal.NewFromBigInt(current, 0)
	prev := decimal.NewFromBigInt(previous, 0)
	return cur.Sub(prev).Mul(hundred).Div(prev)
}
