package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketscope/internal/bucket"
	"marketscope/internal/marketcalc"
	"marketscope/internal/model"
	"marketscope/internal/poolcache"
	"marketscope/internal/pricing"
	"marketscope/internal/quote"
	"marketscope/internal/store"
	"marketscope/internal/swap"
)

// TokenReader resolves ERC20 metadata and supplies from chain. It is
// optional; without one, pool creation falls back to 18 decimals and market
// caps stay zero until a supply is known.
type TokenReader interface {
	Meta(ctx context.Context, token common.Address) (model.TokenMeta, error)
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
}

// Handler turns decoded chain events into entity updates: swaps become
// classified trades with refreshed market metrics, liquidity events adjust
// pool balances, and pool creations register new entities.
type Handler struct {
	store    store.EntityStore
	cache    *poolcache.Cache
	resolver *quote.Resolver
	buckets  *bucket.Aggregator
	orch     *swap.Orchestrator
	tokens   TokenReader
	logger   *zap.Logger
}

func New(entityStore store.EntityStore, cache *poolcache.Cache, resolver *quote.Resolver, buckets *bucket.Aggregator, orch *swap.Orchestrator, tokens TokenReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    entityStore,
		cache:    cache,
		resolver: resolver,
		buckets:  buckets,
		orch:     orch,
		tokens:   tokens,
		logger:   logger,
	}
}

// HandleEvent dispatches one decoded event. Unknown event names are skipped,
// not failed; the stream carries events the engine has no use for.
func (h *Handler) HandleEvent(ctx context.Context, rec model.EventRecord) error {
	switch rec.EventName {
	case "Swap":
		return h.handleSwap(ctx, rec)
	case "Sync":
		return h.handleSync(ctx, rec)
	case "Mint", "Burn":
		return h.handleLiquidity(ctx, rec)
	case "PoolCreated":
		return h.handlePoolCreated(ctx, rec)
	default:
		h.logger.Debug("skipping event", zap.String("event", rec.EventName), zap.String("address", rec.Address))
		return nil
	}
}

func (h *Handler) handleSwap(ctx context.Context, rec model.EventRecord) error {
	var (
		poolAddress      = rec.Address
		delta0, delta1   *big.Int
		quoteIn          *big.Int
		quoteOut         *big.Int
		sqrtPrice        *big.Int
		proceeds         *big.Int
		feePpm           uint32
		side             model.Side
		sideFromProceeds bool
	)

	switch rec.Protocol {
	case model.ProtocolV2:
		var data model.V2SwapEventData
		if err := json.Unmarshal(rec.Decoded, &data); err != nil {
			return fmt.Errorf("decode v2 swap: %w", err)
		}
		in0, err := parseBig(data.Amount0In)
		if err != nil {
			return err
		}
		in1, err := parseBig(data.Amount1In)
		if err != nil {
			return err
		}
		out0, err := parseBig(data.Amount0Out)
		if err != nil {
			return err
		}
		out1, err := parseBig(data.Amount1Out)
		if err != nil {
			return err
		}
		delta0 = new(big.Int).Sub(in0, out0)
		delta1 = new(big.Int).Sub(in1, out1)
	case model.ProtocolV3:
		var data model.V3SwapEventData
		if err := json.Unmarshal(rec.Decoded, &data); err != nil {
			return fmt.Errorf("decode v3 swap: %w", err)
		}
		var err error
		if delta0, err = parseBig(data.Amount0); err != nil {
			return err
		}
		if delta1, err = parseBig(data.Amount1); err != nil {
			return err
		}
		if sqrtPrice, err = parseBig(data.SqrtPriceX96); err != nil {
			return err
		}
	case model.ProtocolHookV1, model.ProtocolHookV2:
		var data model.HookSwapEventData
		if err := json.Unmarshal(rec.Decoded, &data); err != nil {
			return fmt.Errorf("decode hook swap: %w", err)
		}
		poolAddress = data.PoolID
		var err error
		if delta0, err = parseBig(data.Amount0); err != nil {
			return err
		}
		if delta1, err = parseBig(data.Amount1); err != nil {
			return err
		}
		if sqrtPrice, err = parseBig(data.SqrtPriceX96); err != nil {
			return err
		}
		feePpm = data.Fee
		if rec.Protocol == model.ProtocolHookV1 {
			if proceeds, err = parseBig(data.TotalProceeds); err != nil {
				return err
			}
			sideFromProceeds = true
		}
	default:
		return fmt.Errorf("unsupported protocol: %s", rec.Protocol)
	}

	pool, err := h.loadPool(ctx, rec.ChainID, poolAddress)
	if err != nil {
		return err
	}

	if sideFromProceeds {
		side = swap.ClassifyByProceeds(proceeds, pool.Proceeds)
	} else {
		side = swap.ClassifyByAmounts(pool.IsAssetToken0, delta0, delta1)
	}

	// Apply the pool-side deltas before pricing: the price must reflect the
	// state after the trade.
	statePatch := h.stateAfterSwap(&pool, delta0, delta1, sqrtPrice, proceeds)

	var price model.CanonicalPrice
	if pool.Protocol == model.ProtocolV2 {
		price, err = pricing.PriceFromReserves(pool.AssetBalance, pool.QuoteBalance, pool.AssetDecimals, pool.QuoteDecimals)
		if err != nil {
			return fmt.Errorf("price pool %s: %w", poolAddress, err)
		}
	} else {
		price = pricing.PriceFromSqrtRatio(pool.SqrtPriceX96, pool.IsAssetToken0, pool.AssetDecimals, pool.QuoteDecimals)
	}

	quoteInfo, err := h.resolver.Resolve(ctx, pool.Quote, rec.Timestamp)
	if err != nil {
		if errors.Is(err, quote.ErrMissingOracleData) {
			h.logger.Warn("oracle data missing, deferring swap",
				zap.String("pool", poolAddress), zap.Uint64("ts", rec.Timestamp), zap.Error(err))
			return nil
		}
		return err
	}

	if pool.TotalSupply == nil && h.tokens != nil && common.IsHexAddress(pool.Asset) {
		if supply, err := h.tokens.TotalSupply(ctx, common.HexToAddress(pool.Asset)); err == nil {
			pool.TotalSupply = supply
			statePatch.TotalSupply = supply
		} else {
			h.logger.Warn("total supply fetch failed", zap.String("asset", pool.Asset), zap.Error(err))
		}
	}

	if err := h.store.UpdatePool(ctx, rec.ChainID, poolAddress, statePatch); err != nil {
		return fmt.Errorf("persist pool state %s: %w", poolAddress, err)
	}
	if h.cache != nil {
		h.cache.MergePartial(rec.ChainID, poolAddress, statePatch)
	}

	if pool.IsAssetToken0 {
		quoteIn, quoteOut = quoteLegs(delta1)
	} else {
		quoteIn, quoteOut = quoteLegs(delta0)
	}

	metrics := marketcalc.Compute(&pool, price, quoteInfo, quoteIn, quoteOut)

	swapRec := model.SwapRecord{
		ChainID:     rec.ChainID,
		PoolAddress: poolAddress,
		Asset:       pool.Asset,
		Quote:       pool.Quote,
		TxHash:      rec.TxHash,
		LogIndex:    rec.LogIndex,
		Timestamp:   rec.Timestamp,
		Side:        side,
		Amount0:     delta0,
		Amount1:     delta1,
		PriceWad:    price.Value,
		FeesUsd:     feesUsd(metrics.VolumeUsd, feePpm),
	}

	if err := h.orch.ApplyUpdates(ctx, swapRec, metrics, pool); err != nil {
		return err
	}
	if err := h.buckets.UpdateDayBucket(ctx, swapRec, metrics, pool.HolderCount); err != nil {
		return err
	}

	if change, ok := h.buckets.History().Record(poolcache.Key(rec.ChainID, poolAddress), rec.Timestamp, metrics.MarketCapUsd); ok {
		changed := change.String()
		patch := model.AssetPatch{PercentChange24: &changed}
		if err := h.store.UpdateAsset(ctx, rec.ChainID, pool.Asset, patch); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("persist percent change %s: %w", pool.Asset, err)
		}
	}
	return nil
}

// stateAfterSwap mutates the in-memory pool to post-trade state and returns
// the matching persistence patch.
func (h *Handler) stateAfterSwap(pool *model.Pool, delta0, delta1, sqrtPrice, proceeds *big.Int) model.PoolPatch {
	patch := model.PoolPatch{}
	if delta0 != nil && delta1 != nil {
		asset, quoteBal := pool.AssetBalance, pool.QuoteBalance
		if asset == nil {
			asset = big.NewInt(0)
		}
		if quoteBal == nil {
			quoteBal = big.NewInt(0)
		}
		if pool.IsAssetToken0 {
			asset = new(big.Int).Add(asset, delta0)
			quoteBal = new(big.Int).Add(quoteBal, delta1)
		} else {
			asset = new(big.Int).Add(asset, delta1)
			quoteBal = new(big.Int).Add(quoteBal, delta0)
		}
		pool.AssetBalance, pool.QuoteBalance = asset, quoteBal
		patch.AssetBalance, patch.QuoteBalance = asset, quoteBal
	}
	if sqrtPrice != nil {
		pool.SqrtPriceX96 = sqrtPrice
		patch.SqrtPriceX96 = sqrtPrice
	}
	if proceeds != nil {
		pool.Proceeds = proceeds
		patch.Proceeds = proceeds
	}
	return patch
}

func (h *Handler) handleSync(ctx context.Context, rec model.EventRecord) error {
	var data model.V2SyncEventData
	if err := json.Unmarshal(rec.Decoded, &data); err != nil {
		return fmt.Errorf("decode sync: %w", err)
	}
	reserve0, err := parseBig(data.Reserve0)
	if err != nil {
		return err
	}
	reserve1, err := parseBig(data.Reserve1)
	if err != nil {
		return err
	}

	pool, err := h.loadPool(ctx, rec.ChainID, rec.Address)
	if err != nil {
		return err
	}

	if pool.IsAssetToken0 {
		pool.AssetBalance, pool.QuoteBalance = reserve0, reserve1
	} else {
		pool.AssetBalance, pool.QuoteBalance = reserve1, reserve0
	}
	patch := model.PoolPatch{
		AssetBalance: pool.AssetBalance,
		QuoteBalance: pool.QuoteBalance,
	}

	price, err := pricing.PriceFromReserves(pool.AssetBalance, pool.QuoteBalance, pool.AssetDecimals, pool.QuoteDecimals)
	if err == nil {
		patch.PriceWad = price.Value
	}

	h.refreshLiquidity(ctx, &pool, price, rec.Timestamp, &patch)

	if err := h.store.UpdatePool(ctx, rec.ChainID, rec.Address, patch); err != nil {
		return fmt.Errorf("persist sync %s: %w", rec.Address, err)
	}
	if h.cache != nil {
		h.cache.MergePartial(rec.ChainID, rec.Address, patch)
	}
	return nil
}

func (h *Handler) handleLiquidity(ctx context.Context, rec model.EventRecord) error {
	var data model.LiquidityEventData
	if err := json.Unmarshal(rec.Decoded, &data); err != nil {
		return fmt.Errorf("decode liquidity event: %w", err)
	}
	delta0, err := parseBig(data.Amount0)
	if err != nil {
		return err
	}
	delta1, err := parseBig(data.Amount1)
	if err != nil {
		return err
	}

	pool, err := h.loadPool(ctx, rec.ChainID, rec.Address)
	if err != nil {
		return err
	}

	patch := h.stateAfterSwap(&pool, delta0, delta1, nil, nil)

	price := pricing.PriceFromSqrtRatio(pool.SqrtPriceX96, pool.IsAssetToken0, pool.AssetDecimals, pool.QuoteDecimals)
	h.refreshLiquidity(ctx, &pool, price, rec.Timestamp, &patch)

	if err := h.store.UpdatePool(ctx, rec.ChainID, rec.Address, patch); err != nil {
		return fmt.Errorf("persist liquidity change %s: %w", rec.Address, err)
	}
	if h.cache != nil {
		h.cache.MergePartial(rec.ChainID, rec.Address, patch)
	}
	return nil
}

// refreshLiquidity recomputes the pool's USD liquidity when a quote price is
// available. A missing oracle round is tolerated; the next swap refreshes the
// figure.
func (h *Handler) refreshLiquidity(ctx context.Context, pool *model.Pool, price model.CanonicalPrice, timestamp uint64, patch *model.PoolPatch) {
	if price.IsZero() {
		return
	}
	quoteInfo, err := h.resolver.Resolve(ctx, pool.Quote, timestamp)
	if err != nil {
		h.logger.Debug("liquidity refresh skipped", zap.String("pool", pool.Address), zap.Error(err))
		return
	}
	feed := quoteInfo.PriceUsd
	if feed == nil {
		return
	}
	patch.LiquidityUsd = marketcalc.Liquidity(pool.AssetBalance, pool.QuoteBalance, price.Value,
		pool.AssetDecimals, pool.QuoteDecimals, feed, quoteInfo.UsdDenominated, quoteInfo.PriceDecimals)
}

func (h *Handler) handlePoolCreated(ctx context.Context, rec model.EventRecord) error {
	var data model.PoolCreatedEventData
	if err := json.Unmarshal(rec.Decoded, &data); err != nil {
		return fmt.Errorf("decode pool created: %w", err)
	}

	// Factory events only report token ordering; pick the quote side by
	// which token resolves to a recognized currency.
	if data.Asset == "" {
		asset, quoteToken, err := h.inferPoolRoles(ctx, data.Token0, data.Token1)
		if err != nil {
			return err
		}
		data.Asset, data.Quote = asset, quoteToken
	}

	quoteInfo, err := h.resolver.Resolve(ctx, data.Quote, 0)
	if err != nil {
		return fmt.Errorf("resolve quote %s: %w", data.Quote, err)
	}

	pool := model.Pool{
		ChainID:        rec.ChainID,
		Address:        rec.Address,
		Protocol:       rec.Protocol,
		Asset:          data.Asset,
		Quote:          data.Quote,
		AssetDecimals:  18,
		QuoteDecimals:  quoteInfo.QuoteDecimals,
		IsAssetToken0:  strings.EqualFold(data.Token0, data.Asset),
		CreatedAtBlock: rec.BlockNumber,
		CreatedAt:      rec.Timestamp,
	}
	if data.SqrtPriceX96 != "" {
		sqrt, err := parseBig(data.SqrtPriceX96)
		if err != nil {
			return err
		}
		pool.SqrtPriceX96 = sqrt
	}

	var symbol string
	if h.tokens != nil && common.IsHexAddress(data.Asset) {
		assetAddr := common.HexToAddress(data.Asset)
		if meta, err := h.tokens.Meta(ctx, assetAddr); err == nil {
			if meta.Decimals > 0 {
				pool.AssetDecimals = meta.Decimals
			}
			symbol = meta.Symbol
		} else {
			h.logger.Warn("asset metadata fetch failed", zap.String("asset", data.Asset), zap.Error(err))
		}
		if supply, err := h.tokens.TotalSupply(ctx, assetAddr); err == nil {
			pool.TotalSupply = supply
		}
	}

	if err := h.store.InsertPool(ctx, pool); err != nil {
		return fmt.Errorf("insert pool %s: %w", rec.Address, err)
	}
	if h.cache != nil {
		h.cache.Set(pool)
	}

	// Launchpad pools define their asset as a creator coin priced through
	// this pool.
	if rec.Protocol == model.ProtocolHookV1 {
		asset := model.Asset{
			ChainID:       rec.ChainID,
			Address:       data.Asset,
			Symbol:        symbol,
			Decimals:      pool.AssetDecimals,
			IsCreatorCoin: true,
			PrimaryPool:   rec.Address,
			UpdatedAt:     rec.Timestamp,
		}
		if err := h.store.InsertAsset(ctx, asset); err != nil {
			return fmt.Errorf("register creator coin %s: %w", data.Asset, err)
		}
	}
	return nil
}

// inferPoolRoles decides which pool-creation token is the tracked asset and
// which is the quote currency. The quote defaults to token1; it flips only
// when token0 alone resolves to a recognized currency. A pool between two
// unrecognized tokens keeps the default and prices through the sentinel.
func (h *Handler) inferPoolRoles(ctx context.Context, token0, token1 string) (asset, quoteToken string, err error) {
	info0, err := h.resolver.Resolve(ctx, token0, 0)
	if err != nil {
		return "", "", fmt.Errorf("classify token0 %s: %w", token0, err)
	}
	info1, err := h.resolver.Resolve(ctx, token1, 0)
	if err != nil {
		return "", "", fmt.Errorf("classify token1 %s: %w", token1, err)
	}
	if info1.Class == model.QuoteUnknown && info0.Class != model.QuoteUnknown {
		return token1, token0, nil
	}
	return token0, token1, nil
}

func (h *Handler) loadPool(ctx context.Context, chainID uint64, address string) (model.Pool, error) {
	if h.cache != nil {
		if pool, ok := h.cache.Get(chainID, address); ok {
			return pool, nil
		}
	}
	pool, err := h.store.FindPool(ctx, chainID, address)
	if err != nil {
		return model.Pool{}, fmt.Errorf("find pool %s: %w", address, err)
	}
	if h.cache != nil {
		h.cache.Set(*pool)
	}
	return *pool, nil
}

func quoteLegs(quoteDelta *big.Int) (in, out *big.Int) {
	zero := big.NewInt(0)
	if quoteDelta == nil {
		return zero, zero
	}
	if quoteDelta.Sign() >= 0 {
		return quoteDelta, zero
	}
	return zero, new(big.Int).Neg(quoteDelta)
}

func feesUsd(volumeUsd *big.Int, feePpm uint32) *big.Int {
	if volumeUsd == nil || feePpm == 0 {
		return big.NewInt(0)
	}
	fees := new(big.Int).Mul(volumeUsd, new(big.Int).SetUint64(uint64(feePpm)))
	return fees.Div(fees, big.NewInt(1_000_000))
}

func parseBig(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer: %q", value)
	}
	return out, nil
}
