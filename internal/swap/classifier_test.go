package swap

import (
	"math/big"
	"testing"

	"marketscope/internal/model"
)

func TestClassifyByAmounts(t *testing.T) {
	cases := []struct {
		name         string
		isBaseToken0 bool
		amount0      int64
		amount1      int64
		want         model.Side
	}{
		{"base token0 leaves pool", true, -50, 50, model.SideBuy},
		{"base token0 enters pool", true, 50, -50, model.SideSell},
		{"base token1 leaves pool", false, 50, -50, model.SideBuy},
		{"base token1 enters pool", false, -50, 50, model.SideSell},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyByAmounts(tc.isBaseToken0, big.NewInt(tc.amount0), big.NewInt(tc.amount1))
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestClassifyByAmountsNilLeg(t *testing.T) {
	if got := ClassifyByAmounts(true, nil, big.NewInt(1)); got != model.SideSell {
		t.Fatalf("nil base leg: got %s", got)
	}
}

func TestClassifyByProceeds(t *testing.T) {
	if got := ClassifyByProceeds(big.NewInt(200), big.NewInt(100)); got != model.SideBuy {
		t.Fatalf("increase: got %s", got)
	}
	if got := ClassifyByProceeds(big.NewInt(100), big.NewInt(100)); got != model.SideSell {
		t.Fatalf("flat: got %s", got)
	}
	if got := ClassifyByProceeds(big.NewInt(50), big.NewInt(100)); got != model.SideSell {
		t.Fatalf("decrease: got %s", got)
	}
}
