// Package quote resolves a quote-currency address to its USD price and
// decimal metadata. Classification is a closed set: the native wrapped gas
// token, a fixed list of recognized partner tokens, creator coins priced
// through their own pool, and everything else, which resolves to a sentinel
// near-zero price rather than an error.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"marketscope/internal/model"
	"marketscope/internal/pricing"
)

// ErrMissingOracleData signals that a recognized quote currency has no feed
// price at the requested timestamp. Callers should defer the update rather
// than record a zero.
var ErrMissingOracleData = errors.New("quote: missing oracle data")

// Sentinel values for unresolved quote currencies: 1 at 21 price decimals is
// exactly 1e-21 USD. Callers needing authoritative pricing must check the
// classification, not the numeric value.
const (
	sentinelPriceDecimals uint8 = 21
	sentinelQuoteDecimals uint8 = 18
)

// One extra hop through an intermediate quote is supported; anything deeper
// would allow resolution cycles.
const maxQuoteHops = 1

// PriceFeed looks up a currency's USD price at a timestamp. Decimals is the
// feed's native scale; feeds are not uniformly 8-decimal.
type PriceFeed interface {
	FetchPrice(ctx context.Context, timestamp uint64) (*big.Int, error)
	Decimals() uint8
}

// TokenDirectory provides the lookups needed for creator-coin resolution.
type TokenDirectory interface {
	FindToken(ctx context.Context, address string) (*model.TokenRef, error)
	FindPool(ctx context.Context, address string) (*model.PoolRef, error)
}

// Partner is one entry of the fixed recognized token set. Decimal metadata
// is declared here, not read from chain state.
type Partner struct {
	Symbol   string
	Address  string
	Decimals uint8
	// UsdDenominated marks USD-pegged partners (stables); their feed still
	// supplies the exact price.
	UsdDenominated bool
	Feed           PriceFeed
}

// Config fixes the recognized currency set for one chain.
type Config struct {
	// NativeToken is the wrapped gas token address.
	NativeToken    string
	NativeDecimals uint8
	NativeFeed     PriceFeed
	Partners       []Partner
}

// Resolver classifies quote currencies and prices them in USD.
type Resolver struct {
	cfg       Config
	partners  map[string]Partner
	directory TokenDirectory
	logger    *zap.Logger
}

func NewResolver(cfg Config, directory TokenDirectory, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	partners := make(map[string]Partner, len(cfg.Partners))
	for _, p := range cfg.Partners {
		partners[strings.ToLower(p.Address)] = p
	}
	return &Resolver{
		cfg:       cfg,
		partners:  partners,
		directory: directory,
		logger:    logger,
	}
}

// Resolve classifies the quote currency and returns its USD price at the
// timestamp. A zero timestamp requests metadata only: the classification and
// decimal shape come back with a nil price, used during pool initialization
// before any trade exists.
func (r *Resolver) Resolve(ctx context.Context, quoteAddress string, timestamp uint64) (model.QuoteInfo, error) {
	return r.resolve(ctx, quoteAddress, timestamp, 0)
}

func (r *Resolver) resolve(ctx context.Context, quoteAddress string, timestamp uint64, depth int) (model.QuoteInfo, error) {
	addr := strings.ToLower(quoteAddress)

	if addr == strings.ToLower(r.cfg.NativeToken) {
		return r.resolveNative(ctx, timestamp)
	}

	if partner, ok := r.partners[addr]; ok {
		return r.resolvePartner(ctx, partner, timestamp)
	}

	if depth < maxQuoteHops {
		info, ok, err := r.resolveCreatorCoin(ctx, addr, timestamp, depth)
		if err != nil {
			return model.QuoteInfo{}, err
		}
		if ok {
			return info, nil
		}
	}

	r.logger.Debug("unresolved quote currency, using sentinel price",
		zap.String("quote", addr), zap.Int("depth", depth))
	return sentinelInfo(timestamp), nil
}

func (r *Resolver) resolveNative(ctx context.Context, timestamp uint64) (model.QuoteInfo, error) {
	info := model.QuoteInfo{
		Class:         model.QuoteNative,
		QuoteDecimals: r.cfg.NativeDecimals,
		PriceDecimals: r.cfg.NativeFeed.Decimals(),
	}
	if timestamp == 0 {
		return info, nil
	}
	price, err := r.cfg.NativeFeed.FetchPrice(ctx, timestamp)
	if err != nil {
		return model.QuoteInfo{}, fmt.Errorf("%w: native at %d: %v", ErrMissingOracleData, timestamp, err)
	}
	if price == nil {
		return model.QuoteInfo{}, fmt.Errorf("%w: native at %d", ErrMissingOracleData, timestamp)
	}
	info.PriceUsd = price
	return info, nil
}

func (r *Resolver) resolvePartner(ctx context.Context, partner Partner, timestamp uint64) (model.QuoteInfo, error) {
	info := model.QuoteInfo{
		Class:          model.QuotePartner,
		Partner:        partner.Symbol,
		QuoteDecimals:  partner.Decimals,
		PriceDecimals:  partner.Feed.Decimals(),
		UsdDenominated: partner.UsdDenominated,
	}
	if timestamp == 0 {
		return info, nil
	}
	price, err := partner.Feed.FetchPrice(ctx, timestamp)
	if err != nil {
		return model.QuoteInfo{}, fmt.Errorf("%w: %s at %d: %v", ErrMissingOracleData, partner.Symbol, timestamp, err)
	}
	if price == nil {
		return model.QuoteInfo{}, fmt.Errorf("%w: %s at %d", ErrMissingOracleData, partner.Symbol, timestamp)
	}
	info.PriceUsd = price
	return info, nil
}

// resolveCreatorCoin prices a registered creator coin through its own pool:
// the coin's pool price (quoted in a second currency) times that currency's
// USD price. The second hop goes back through resolve with an incremented
// depth; an unresolved second hop yields the sentinel so callers always get
// a value.
func (r *Resolver) resolveCreatorCoin(ctx context.Context, addr string, timestamp uint64, depth int) (model.QuoteInfo, bool, error) {
	if r.directory == nil {
		return model.QuoteInfo{}, false, nil
	}
	token, err := r.directory.FindToken(ctx, addr)
	if err != nil {
		return model.QuoteInfo{}, false, fmt.Errorf("find token %s: %w", addr, err)
	}
	if token == nil || !token.IsCreatorCoin || token.PoolAddress == "" {
		return model.QuoteInfo{}, false, nil
	}

	info := model.QuoteInfo{
		Class:         model.QuoteCreatorCoin,
		QuoteDecimals: token.Decimals,
		PriceDecimals: 18,
	}
	if timestamp == 0 {
		return info, true, nil
	}

	pool, err := r.directory.FindPool(ctx, token.PoolAddress)
	if err != nil {
		return model.QuoteInfo{}, false, fmt.Errorf("find pool %s: %w", token.PoolAddress, err)
	}
	if pool == nil {
		r.logger.Warn("creator coin pool missing, using sentinel price",
			zap.String("coin", addr), zap.String("pool", token.PoolAddress))
		out := sentinelInfo(timestamp)
		out.Class = model.QuoteCreatorCoin
		out.QuoteDecimals = token.Decimals
		return out, true, nil
	}

	coinPrice := pricing.PriceFromSqrtRatio(pool.SqrtPriceX96, pool.IsBaseToken0, pool.BaseDecimals, pool.QuoteDecimals)

	second, err := r.resolve(ctx, pool.QuoteAddress, timestamp, depth+1)
	if err != nil {
		return model.QuoteInfo{}, false, err
	}
	if second.Class == model.QuoteUnknown {
		r.logger.Debug("creator coin second hop unresolved",
			zap.String("coin", addr), zap.String("second_quote", pool.QuoteAddress))
	}

	info.PriceUsd = pricing.UsdFromQuotePrice(coinPrice.Value, second.PriceUsd, second.PriceDecimals)
	return info, true, nil
}

func sentinelInfo(timestamp uint64) model.QuoteInfo {
	info := model.QuoteInfo{
		Class:         model.QuoteUnknown,
		QuoteDecimals: sentinelQuoteDecimals,
		PriceDecimals: sentinelPriceDecimals,
	}
	if timestamp != 0 {
		info.PriceUsd = big.NewInt(1)
	}
	return info
}
