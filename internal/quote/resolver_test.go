package quote

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"marketscope/internal/model"
	"marketscope/internal/pricing"
)

const (
	wethAddr = "0x4200000000000000000000000000000000000006"
	usdcAddr = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	govAddr  = "0x1111111111111111111111111111111111111111"
	coinAddr = "0x2222222222222222222222222222222222222222"
	poolAddr = "0x3333333333333333333333333333333333333333"
)

type stubFeed struct {
	price    *big.Int
	decimals uint8
	err      error
}

func (f *stubFeed) FetchPrice(_ context.Context, _ uint64) (*big.Int, error) {
	return f.price, f.err
}

func (f *stubFeed) Decimals() uint8 { return f.decimals }

type stubDirectory struct {
	tokens map[string]*model.TokenRef
	pools  map[string]*model.PoolRef
}

func (d *stubDirectory) FindToken(_ context.Context, address string) (*model.TokenRef, error) {
	return d.tokens[strings.ToLower(address)], nil
}

func (d *stubDirectory) FindPool(_ context.Context, address string) (*model.PoolRef, error) {
	return d.pools[strings.ToLower(address)], nil
}

func newTestResolver(dir TokenDirectory) *Resolver {
	cfg := Config{
		NativeToken:    wethAddr,
		NativeDecimals: 18,
		NativeFeed:     &stubFeed{price: big.NewInt(2000_00000000), decimals: 8},
		Partners: []Partner{
			{
				Symbol:         "USDC",
				Address:        usdcAddr,
				Decimals:       6,
				UsdDenominated: true,
				Feed:           &stubFeed{price: big.NewInt(100_000_000), decimals: 8},
			},
			{
				Symbol:   "GOV",
				Address:  govAddr,
				Decimals: 18,
				Feed:     &stubFeed{price: big.NewInt(5_00000000), decimals: 8},
			},
		},
	}
	return NewResolver(cfg, dir, nil)
}

func TestResolveNative(t *testing.T) {
	r := newTestResolver(nil)

	info, err := r.Resolve(context.Background(), strings.ToUpper(wethAddr), 1_700_000_000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Class != model.QuoteNative {
		t.Fatalf("class: %v", info.Class)
	}
	if info.QuoteDecimals != 18 || info.PriceDecimals != 8 {
		t.Fatalf("decimals: quote=%d price=%d", info.QuoteDecimals, info.PriceDecimals)
	}
	if info.PriceUsd.Cmp(big.NewInt(2000_00000000)) != 0 {
		t.Fatalf("price: %s", info.PriceUsd)
	}
}

func TestResolveMetadataOnly(t *testing.T) {
	r := newTestResolver(nil)

	info, err := r.Resolve(context.Background(), usdcAddr, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.PriceUsd != nil {
		t.Fatalf("metadata-only query must not carry a price, got %s", info.PriceUsd)
	}
	if info.Class != model.QuotePartner || info.Partner != "USDC" {
		t.Fatalf("class: %v %q", info.Class, info.Partner)
	}
	if info.QuoteDecimals != 6 {
		t.Fatalf("quote decimals: %d", info.QuoteDecimals)
	}
	if !info.UsdDenominated {
		t.Fatalf("USDC should be USD-denominated")
	}
}

func TestResolveMissingOracleData(t *testing.T) {
	cfg := Config{
		NativeToken:    wethAddr,
		NativeDecimals: 18,
		NativeFeed:     &stubFeed{err: errors.New("no round at timestamp"), decimals: 8},
	}
	r := NewResolver(cfg, nil, nil)

	_, err := r.Resolve(context.Background(), wethAddr, 1_700_000_000)
	if !errors.Is(err, ErrMissingOracleData) {
		t.Fatalf("want ErrMissingOracleData, got %v", err)
	}
}

func TestResolveUnknownReturnsSentinel(t *testing.T) {
	r := newTestResolver(&stubDirectory{})

	info, err := r.Resolve(context.Background(), "0x9999999999999999999999999999999999999999", 1_700_000_000)
	if err != nil {
		t.Fatalf("unknown quote must not fail: %v", err)
	}
	if info.Class != model.QuoteUnknown {
		t.Fatalf("class: %v", info.Class)
	}
	if info.PriceUsd.Cmp(big.NewInt(1)) != 0 || info.PriceDecimals != 21 {
		t.Fatalf("sentinel mismatch: %s at %d decimals", info.PriceUsd, info.PriceDecimals)
	}
}

func TestResolveCreatorCoin(t *testing.T) {
	// Creator coin pool quotes the coin against GOV at a raw ratio of 1,
	// with GOV at $5 on an 8-decimal feed.
	dir := &stubDirectory{
		tokens: map[string]*model.TokenRef{
			coinAddr: {Address: coinAddr, Decimals: 18, IsCreatorCoin: true, PoolAddress: poolAddr},
		},
		pools: map[string]*model.PoolRef{
			poolAddr: {
				Address:       poolAddr,
				SqrtPriceX96:  new(big.Int).Lsh(big.NewInt(1), 96),
				IsBaseToken0:  true,
				QuoteAddress:  govAddr,
				BaseDecimals:  18,
				QuoteDecimals: 18,
			},
		},
	}
	r := newTestResolver(dir)

	info, err := r.Resolve(context.Background(), coinAddr, 1_700_000_000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Class != model.QuoteCreatorCoin {
		t.Fatalf("class: %v", info.Class)
	}
	// 1 GOV per coin at $5: 5e18 at 18 price decimals.
	want := new(big.Int).Mul(big.NewInt(5), pricing.Wad)
	if info.PriceUsd.Cmp(want) != 0 {
		t.Fatalf("price: got %s, want %s", info.PriceUsd, want)
	}
	if info.PriceDecimals != 18 {
		t.Fatalf("price decimals: %d", info.PriceDecimals)
	}
}

func TestResolveCreatorCoinSecondHopUnresolved(t *testing.T) {
	// The coin's pool quotes against another creator coin; the second hop is
	// past the depth cap, so it resolves to the sentinel instead of recursing.
	secondCoin := "0x4444444444444444444444444444444444444444"
	dir := &stubDirectory{
		tokens: map[string]*model.TokenRef{
			coinAddr:   {Address: coinAddr, Decimals: 18, IsCreatorCoin: true, PoolAddress: poolAddr},
			secondCoin: {Address: secondCoin, Decimals: 18, IsCreatorCoin: true, PoolAddress: poolAddr},
		},
		pools: map[string]*model.PoolRef{
			poolAddr: {
				Address:       poolAddr,
				SqrtPriceX96:  new(big.Int).Lsh(big.NewInt(1), 96),
				IsBaseToken0:  true,
				QuoteAddress:  secondCoin,
				BaseDecimals:  18,
				QuoteDecimals: 18,
			},
		},
	}
	r := newTestResolver(dir)

	info, err := r.Resolve(context.Background(), coinAddr, 1_700_000_000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Class != model.QuoteCreatorCoin {
		t.Fatalf("class: %v", info.Class)
	}
	// 1e18 (coin price in second quote) * 1 / 1e21: near-zero but defined.
	if info.PriceUsd.Sign() < 0 {
		t.Fatalf("price must be non-negative, got %s", info.PriceUsd)
	}
	if info.PriceUsd.Cmp(pricing.Wad) >= 0 {
		t.Fatalf("second-hop sentinel should collapse the price, got %s", info.PriceUsd)
	}
}

func TestResolveCreatorCoinMissingPool(t *testing.T) {
	dir := &stubDirectory{
		tokens: map[string]*model.TokenRef{
			coinAddr: {Address: coinAddr, Decimals: 18, IsCreatorCoin: true, PoolAddress: poolAddr},
		},
	}
	r := newTestResolver(dir)

	info, err := r.Resolve(context.Background(), coinAddr, 1_700_000_000)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Class != model.QuoteCreatorCoin {
		t.Fatalf("class: %v", info.Class)
	}
	if info.PriceUsd.Cmp(big.NewInt(1)) != 0 || info.PriceDecimals != 21 {
		t.Fatalf("missing pool should fall back to sentinel, got %s at %d", info.PriceUsd, info.PriceDecimals)
	}
}
