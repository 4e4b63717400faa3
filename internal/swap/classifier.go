// Package swap classifies trades and fans out the entity updates that
// follow a metrics computation.
package swap

import (
	"math/big"

	"marketscope/internal/model"
)

// ClassifyByAmounts derives the trade direction from the base-token leg: a
// Buy is defined by the base asset's balance decreasing in the pool (base
// flowing out to the trader). Orientation flips when the asset is the
// pool's second-ordered token.
func ClassifyByAmounts(isBaseToken0 bool, amount0, amount1 *big.Int) model.Side {
	baseLeg := amount0
	if !isBaseToken0 {
		baseLeg = amount1
	}
	if baseLeg != nil && baseLeg.Sign() < 0 {
		return model.SideBuy
	}
	return model.SideSell
}

// ClassifyByProceeds derives the direction for pools that report cumulative
// quote-side proceeds instead of per-swap deltas: an increase is a Buy.
func ClassifyByProceeds(currentProceeds, previousProceeds *big.Int) model.Side {
	if currentProceeds == nil || previousProceeds == nil {
		return model.SideSell
	}
	if currentProceeds.Cmp(previousProceeds) > 0 {
		return model.SideBuy
	}
	return model.SideSell
}
