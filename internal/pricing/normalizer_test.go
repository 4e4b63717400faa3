package pricing

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceFromSqrtRatioUnit(t *testing.T) {
	// sqrtPriceX96 = 2^96 means a raw ratio of exactly 1.
	sqrt := new(big.Int).Lsh(big.NewInt(1), 96)

	price := PriceFromSqrtRatio(sqrt, true, 18, 18)
	if price.Value.Cmp(Wad) != 0 {
		t.Fatalf("token0 orientation: got %s, want %s", price.Value, Wad)
	}

	inverse := PriceFromSqrtRatio(sqrt, false, 18, 18)
	if inverse.Value.Cmp(Wad) != 0 {
		t.Fatalf("token1 orientation: got %s, want %s", inverse.Value, Wad)
	}
}

func TestPriceFromSqrtRatioInverseRoundTrip(t *testing.T) {
	cases := []string{
		"79228162514264337593543950336", // 2^96
		"158456325028528675187087900672",
		"3543950336792281625142643375935",
		"250541448375047931186413801569",
	}

	wadSquared := new(big.Int).Mul(Wad, Wad)
	for _, raw := range cases {
		sqrt, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			t.Fatalf("bad case %q", raw)
		}
		forward := PriceFromSqrtRatio(sqrt, true, 18, 18)
		backward := PriceFromSqrtRatio(sqrt, false, 18, 18)
		product := new(big.Int).Mul(forward.Value, backward.Value)

		// Integer rounding may lose up to 0.1%.
		diff := new(big.Int).Sub(product, wadSquared)
		diff.Abs(diff)
		tolerance := new(big.Int).Div(wadSquared, big.NewInt(1000))
		if diff.Cmp(tolerance) > 0 {
			t.Fatalf("round trip for %s: product %s deviates from WAD^2 by %s", raw, product, diff)
		}
	}
}

func TestPriceFromSqrtRatioZero(t *testing.T) {
	price := PriceFromSqrtRatio(big.NewInt(0), true, 18, 18)
	if price.Value.Sign() != 0 {
		t.Fatalf("zero ratio should price at zero, got %s", price.Value)
	}
	price = PriceFromSqrtRatio(nil, false, 18, 18)
	if price.Value.Sign() != 0 {
		t.Fatalf("nil ratio should price at zero, got %s", price.Value)
	}
}

func TestPriceFromSqrtRatioNonNegative(t *testing.T) {
	sqrt, _ := new(big.Int).SetString("112045541949572279837463876454", 10)
	for _, isToken0 := range []bool{true, false} {
		price := PriceFromSqrtRatio(sqrt, isToken0, 18, 6)
		if price.Value.Sign() < 0 {
			t.Fatalf("negative price for isToken0=%v", isToken0)
		}
	}
}

func TestPriceAgreesAcrossRepresentations(t *testing.T) {
	// One market, 18-decimal base against a 6-decimal quote, priced through
	// both representations. sqrt = 2^86 squares to a raw token1/token0
	// ratio of exactly 2^-20; reserves of 2^20*10^18 base raw units against
	// 10^18 quote raw units describe the same ratio. Both divisions are
	// exact, so the canonical values must match to the digit.
	sqrt := new(big.Int).Lsh(big.NewInt(1), 86)
	baseReserve := new(big.Int).Lsh(Pow10(18), 20)
	quoteReserve := Pow10(18)

	fromSqrt := PriceFromSqrtRatio(sqrt, true, 18, 6)
	fromReserves, err := PriceFromReserves(baseReserve, quoteReserve, 18, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := new(big.Int).Div(Pow10(30), new(big.Int).Lsh(big.NewInt(1), 20))
	if fromReserves.Value.Cmp(want) != 0 {
		t.Fatalf("reserves: got %s, want %s", fromReserves.Value, want)
	}
	if fromSqrt.Value.Cmp(fromReserves.Value) != 0 {
		t.Fatalf("representations disagree: sqrt %s, reserves %s", fromSqrt.Value, fromReserves.Value)
	}

	// Flipped orientation: the base asset on the token1 side of the same
	// market (sqrt = 2^106 squares to a raw ratio of 2^20).
	flippedSqrt := new(big.Int).Lsh(big.NewInt(1), 106)
	flipped := PriceFromSqrtRatio(flippedSqrt, false, 18, 6)
	if flipped.Value.Cmp(want) != 0 {
		t.Fatalf("flipped orientation: got %s, want %s", flipped.Value, want)
	}
}

func TestPriceFromReserves(t *testing.T) {
	// 2000 USDC (6 decimals) against 1 WETH (18 decimals).
	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	quote := big.NewInt(2000_000000)

	price, err := PriceFromReserves(base, quote, 18, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2000), Wad)
	if price.Value.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", price.Value, want)
	}
}

func TestPriceFromReservesZeroBase(t *testing.T) {
	_, err := PriceFromReserves(big.NewInt(0), big.NewInt(100), 18, 18)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("want ErrDivisionByZero, got %v", err)
	}
	_, err = PriceFromReserves(nil, big.NewInt(100), 18, 18)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("nil base: want ErrDivisionByZero, got %v", err)
	}
}

func TestPriceFromReservesZeroQuote(t *testing.T) {
	price, err := PriceFromReserves(big.NewInt(500), big.NewInt(0), 18, 18)
	if err != nil {
		t.Fatalf("zero quote reserve must not fail: %v", err)
	}
	if price.Value.Sign() != 0 {
		t.Fatalf("zero quote reserve should yield zero price, got %s", price.Value)
	}
}

func TestUsdFromQuotePrice(t *testing.T) {
	// Price of 1 quote unit per base unit, quote at $2000 on an 8-decimal feed.
	price := new(big.Int).Set(Wad)
	feed := big.NewInt(2000_00000000)

	usd := UsdFromQuotePrice(price, feed, 8)
	want := new(big.Int).Mul(big.NewInt(2000), Wad)
	if usd.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", usd, want)
	}

	// Identity when the quote is already USD (feed value 10^decimals).
	same := UsdFromQuotePrice(price, Pow10(8), 8)
	if same.Cmp(price) != 0 {
		t.Fatalf("identity: got %s, want %s", same, price)
	}
}

func TestPercentChange(t *testing.T) {
	if got := PercentChange(big.NewInt(150), big.NewInt(100)); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("got %s, want 50", got)
	}
	if got := PercentChange(big.NewInt(50), big.NewInt(100)); !got.Equal(decimal.NewFromInt(-50)) {
		t.Fatalf("got %s, want -50", got)
	}
	if got := PercentChange(big.NewInt(123), big.NewInt(0)); !got.IsZero() {
		t.Fatalf("zero previous must yield zero, got %s", got)
	}
	if got := PercentChange(nil, nil); !got.IsZero() {
		t.Fatalf("nil inputs must yield zero, got %s", got)
	}
}
