package handler

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"marketscope/internal/bucket"
	"marketscope/internal/model"
	"marketscope/internal/oracle"
	"marketscope/internal/poolcache"
	"marketscope/internal/quote"
	"marketscope/internal/store"
	"marketscope/internal/swap"
)

const (
	testChainID = uint64(8453)
	nativeToken = "0x4200000000000000000000000000000000000006"
	poolAddr    = "0x1111111111111111111111111111111111111111"
	assetAddr   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

type failingFeed struct{}

func (failingFeed) FetchPrice(context.Context, uint64) (*big.Int, error) {
	return nil, context.DeadlineExceeded
}

func (failingFeed) Decimals() uint8 { return 8 }

type fixture struct {
	mem     *store.Memory
	cache   *poolcache.Cache
	buckets *bucket.Aggregator
	handler *Handler
}

func newFixture(t *testing.T, feed quote.PriceFeed) *fixture {
	t.Helper()
	mem := store.NewMemory()
	cache := poolcache.New()
	buckets := bucket.NewAggregator(mem, zap.NewNop())
	orch := swap.NewOrchestrator(mem, buckets, cache, zap.NewNop())

	cfg := quote.Config{
		NativeToken:    nativeToken,
		NativeDecimals: 18,
		NativeFeed:     feed,
	}
	resolver := quote.NewResolver(cfg, NewEntityDirectory(mem, testChainID), zap.NewNop())

	h := New(mem, cache, resolver, buckets, orch, nil, zap.NewNop())
	return &fixture{mem: mem, cache: cache, buckets: buckets, handler: h}
}

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func seedV3Pool(t *testing.T, f *fixture) {
	t.Helper()
	pool := model.Pool{
		ChainID:       testChainID,
		Address:       poolAddr,
		Protocol:      model.ProtocolV3,
		Asset:         assetAddr,
		Quote:         nativeToken,
		AssetDecimals: 18,
		QuoteDecimals: 18,
		IsAssetToken0: true,
		AssetBalance:  wad(500),
		QuoteBalance:  wad(500),
		TotalSupply:   wad(1_000_000),
	}
	if err := f.mem.InsertPool(context.Background(), pool); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
}

func v3SwapEvent(amount0, amount1 string, ts uint64) model.EventRecord {
	payload, _ := json.Marshal(model.V3SwapEventData{
		Sender:       "0x2222222222222222222222222222222222222222",
		Recipient:    "0x3333333333333333333333333333333333333333",
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: new(big.Int).Lsh(big.NewInt(1), 96).String(),
		Liquidity:    "1",
		Tick:         0,
	})
	return model.EventRecord{
		ChainID:   testChainID,
		TxHash:    "0xdef",
		LogIndex:  1,
		Address:   poolAddr,
		EventName: "Swap",
		Protocol:  model.ProtocolV3,
		Timestamp: ts,
		Decoded:   payload,
	}
}

func TestHandleV3SwapUpdatesEntities(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8)) // $2000
	seedV3Pool(t, f)
	ctx := context.Background()

	// 5 tokens leave the pool, 10 WETH come in: a buy at 1 WETH per token
	if err := f.handler.HandleEvent(ctx, v3SwapEvent(wad(-5).String(), wad(10).String(), 1_700_000_000)); err != nil {
		t.Fatalf("handle swap: %v", err)
	}

	pool, err := f.mem.FindPool(ctx, testChainID, poolAddr)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.PriceWad == nil || pool.PriceWad.Cmp(wad(1)) != 0 {
		t.Fatalf("price mismatch: %v", pool.PriceWad)
	}
	if pool.AssetBalance.Cmp(wad(495)) != 0 || pool.QuoteBalance.Cmp(wad(510)) != 0 {
		t.Fatalf("balances not applied: %v %v", pool.AssetBalance, pool.QuoteBalance)
	}
	// 10 WETH at $2000
	if pool.VolumeUsd == nil || pool.VolumeUsd.Cmp(wad(20_000)) != 0 {
		t.Fatalf("volume mismatch: %v", pool.VolumeUsd)
	}
	// 1M supply at 1 WETH at $2000
	if pool.MarketCapUsd == nil || pool.MarketCapUsd.Cmp(wad(2_000_000_000)) != 0 {
		t.Fatalf("market cap mismatch: %v", pool.MarketCapUsd)
	}

	quarter, ok := f.mem.Bucket(testChainID, poolAddr, 900, bucket.Start(1_700_000_000, 900))
	if !ok {
		t.Fatalf("15m bucket missing")
	}
	if quarter.BuyCount != 1 || quarter.SellCount != 0 {
		t.Fatalf("classification mismatch: %+v", quarter)
	}
	day, ok := f.mem.Bucket(testChainID, poolAddr, bucket.DayWindow, bucket.Start(1_700_000_000, bucket.DayWindow))
	if !ok {
		t.Fatalf("day bucket missing")
	}
	if day.Close == nil || day.Close.Cmp(wad(1)) != 0 {
		t.Fatalf("day close mismatch: %v", day.Close)
	}

	asset, err := f.mem.FindAsset(ctx, testChainID, assetAddr)
	if err != nil {
		t.Fatalf("find asset: %v", err)
	}
	if asset.PriceWad.Cmp(wad(1)) != 0 {
		t.Fatalf("asset price mismatch: %v", asset.PriceWad)
	}
	if asset.PercentChange24 == "" {
		t.Fatalf("percent change not recorded")
	}

	cached, ok := f.cache.Get(testChainID, poolAddr)
	if !ok {
		t.Fatalf("pool not cached")
	}
	if cached.VolumeUsd.Cmp(pool.VolumeUsd) != 0 {
		t.Fatalf("cache behind store: %v vs %v", cached.VolumeUsd, pool.VolumeUsd)
	}
}

func TestHandleSwapDefersWhenOracleMissing(t *testing.T) {
	f := newFixture(t, failingFeed{})
	seedV3Pool(t, f)
	ctx := context.Background()

	if err := f.handler.HandleEvent(ctx, v3SwapEvent(wad(-5).String(), wad(10).String(), 1_700_000_000)); err != nil {
		t.Fatalf("deferred swap should not error: %v", err)
	}

	pool, err := f.mem.FindPool(ctx, testChainID, poolAddr)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.PriceWad != nil {
		t.Fatalf("price should stay unset: %v", pool.PriceWad)
	}
	if f.mem.BucketCount() != 0 {
		t.Fatalf("no buckets expected, got %d", f.mem.BucketCount())
	}
}

func TestHandleSyncRepricesPool(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8))
	ctx := context.Background()

	pool := model.Pool{
		ChainID:       testChainID,
		Address:       poolAddr,
		Protocol:      model.ProtocolV2,
		Asset:         assetAddr,
		Quote:         nativeToken,
		AssetDecimals: 18,
		QuoteDecimals: 18,
		IsAssetToken0: true,
	}
	if err := f.mem.InsertPool(ctx, pool); err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	payload, _ := json.Marshal(model.V2SyncEventData{
		Reserve0: wad(1000).String(),
		Reserve1: wad(2000).String(),
	})
	rec := model.EventRecord{
		ChainID:   testChainID,
		Address:   poolAddr,
		EventName: "Sync",
		Protocol:  model.ProtocolV2,
		Timestamp: 1_700_000_000,
		Decoded:   payload,
	}
	if err := f.handler.HandleEvent(ctx, rec); err != nil {
		t.Fatalf("handle sync: %v", err)
	}

	updated, err := f.mem.FindPool(ctx, testChainID, poolAddr)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if updated.AssetBalance.Cmp(wad(1000)) != 0 || updated.QuoteBalance.Cmp(wad(2000)) != 0 {
		t.Fatalf("reserves mismatch: %v %v", updated.AssetBalance, updated.QuoteBalance)
	}
	if updated.PriceWad == nil || updated.PriceWad.Cmp(wad(2)) != 0 {
		t.Fatalf("price mismatch: %v", updated.PriceWad)
	}
	// 1000 tokens at 2 WETH plus 2000 WETH, all at $2000
	if updated.LiquidityUsd == nil || updated.LiquidityUsd.Cmp(wad(8_000_000)) != 0 {
		t.Fatalf("liquidity mismatch: %v", updated.LiquidityUsd)
	}
}

func TestHandleHookProceedsClassification(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8))
	ctx := context.Background()

	hookPool := "0x00000000000000000000000000000000000000000000000000000000000000aa"
	pool := model.Pool{
		ChainID:       testChainID,
		Address:       hookPool,
		Protocol:      model.ProtocolHookV1,
		Asset:         assetAddr,
		Quote:         nativeToken,
		AssetDecimals: 18,
		QuoteDecimals: 18,
		IsAssetToken0: true,
		TotalSupply:   wad(1_000_000),
		Proceeds:      big.NewInt(1000),
	}
	if err := f.mem.InsertPool(ctx, pool); err != nil {
		t.Fatalf("seed pool: %v", err)
	}

	event := func(proceeds string, logIndex uint64) model.EventRecord {
		payload, _ := json.Marshal(model.HookSwapEventData{
			PoolID:        hookPool,
			Amount0:       wad(-1).String(),
			Amount1:       wad(1).String(),
			SqrtPriceX96:  new(big.Int).Lsh(big.NewInt(1), 96).String(),
			TotalProceeds: proceeds,
		})
		return model.EventRecord{
			ChainID:   testChainID,
			TxHash:    "0xdef",
			LogIndex:  logIndex,
			Address:   "0x7777777777777777777777777777777777777777",
			EventName: "Swap",
			Protocol:  model.ProtocolHookV1,
			Timestamp: 1_700_000_000,
			Decoded:   payload,
		}
	}

	if err := f.handler.HandleEvent(ctx, event("1500", 1)); err != nil {
		t.Fatalf("handle buy: %v", err)
	}
	if err := f.handler.HandleEvent(ctx, event("1200", 2)); err != nil {
		t.Fatalf("handle sell: %v", err)
	}

	updated, err := f.mem.FindPool(ctx, testChainID, hookPool)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if updated.Proceeds.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("proceeds not tracked: %v", updated.Proceeds)
	}

	quarter, ok := f.mem.Bucket(testChainID, hookPool, 900, bucket.Start(1_700_000_000, 900))
	if !ok {
		t.Fatalf("15m bucket missing")
	}
	if quarter.BuyCount != 1 || quarter.SellCount != 1 {
		t.Fatalf("proceeds classification mismatch: %+v", quarter)
	}
}

func TestHandlePoolCreatedRegistersCreatorCoin(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8))
	ctx := context.Background()

	coin := "0xcccccccccccccccccccccccccccccccccccccccc"
	launchPool := "0x00000000000000000000000000000000000000000000000000000000000000bb"
	payload, _ := json.Marshal(model.PoolCreatedEventData{
		Token0: coin,
		Token1: nativeToken,
		Asset:  coin,
		Quote:  nativeToken,
	})
	rec := model.EventRecord{
		ChainID:     testChainID,
		BlockNumber: 100,
		Address:     launchPool,
		EventName:   "PoolCreated",
		Protocol:    model.ProtocolHookV1,
		Timestamp:   1_700_000_000,
		Decoded:     payload,
	}
	if err := f.handler.HandleEvent(ctx, rec); err != nil {
		t.Fatalf("handle pool created: %v", err)
	}

	pool, err := f.mem.FindPool(ctx, testChainID, launchPool)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if !pool.IsAssetToken0 || pool.Quote != nativeToken {
		t.Fatalf("orientation mismatch: %+v", pool)
	}
	if pool.CreatedAtBlock != 100 || pool.CreatedAt != 1_700_000_000 {
		t.Fatalf("creation provenance mismatch: %+v", pool)
	}

	registered, err := f.mem.FindCreatorCoin(ctx, testChainID, coin)
	if err != nil {
		t.Fatalf("creator coin not registered: %v", err)
	}
	if registered.PrimaryPool != launchPool {
		t.Fatalf("primary pool mismatch: %s", registered.PrimaryPool)
	}
}

func TestHandlePoolCreatedInfersQuoteSide(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8))
	ctx := context.Background()

	// Native on the token0 side: the roles flip so the unrecognized token
	// stays the tracked asset.
	factoryPool := "0x7777777777777777777777777777777777777777"
	payload, _ := json.Marshal(model.PoolCreatedEventData{
		Token0: nativeToken,
		Token1: assetAddr,
		Fee:    3000,
	})
	rec := model.EventRecord{
		ChainID:     testChainID,
		BlockNumber: 200,
		Address:     factoryPool,
		EventName:   "PoolCreated",
		Protocol:    model.ProtocolV3,
		Timestamp:   1_700_000_000,
		Decoded:     payload,
	}
	if err := f.handler.HandleEvent(ctx, rec); err != nil {
		t.Fatalf("handle pool created: %v", err)
	}

	pool, err := f.mem.FindPool(ctx, testChainID, factoryPool)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.Asset != assetAddr || pool.Quote != nativeToken {
		t.Fatalf("roles mismatch: %+v", pool)
	}
	if pool.IsAssetToken0 {
		t.Fatalf("orientation mismatch: %+v", pool)
	}

	// Two unrecognized tokens keep the default token1 quote side.
	otherPool := "0x8888888888888888888888888888888888888888"
	other := "0xdddddddddddddddddddddddddddddddddddddddd"
	payload, _ = json.Marshal(model.PoolCreatedEventData{
		Token0: assetAddr,
		Token1: other,
	})
	rec.Address = otherPool
	rec.Protocol = model.ProtocolV2
	rec.Decoded = payload
	if err := f.handler.HandleEvent(ctx, rec); err != nil {
		t.Fatalf("handle pool created: %v", err)
	}
	pool, err = f.mem.FindPool(ctx, testChainID, otherPool)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.Asset != assetAddr || pool.Quote != other || !pool.IsAssetToken0 {
		t.Fatalf("default roles mismatch: %+v", pool)
	}
}

type memState struct {
	last  uint64
	saved bool
}

func (s *memState) Load(context.Context) (uint64, bool, error) {
	return s.last, s.saved, nil
}

func (s *memState) Save(_ context.Context, ts uint64) error {
	s.last = ts
	s.saved = true
	return nil
}

func TestRunnerProcessesStreamAndCheckpoints(t *testing.T) {
	f := newFixture(t, oracle.NewFixedFeed(big.NewInt(200_000_000_000), 8))
	seedV3Pool(t, f)

	events := []model.EventRecord{
		v3SwapEvent(wad(-5).String(), wad(10).String(), 1_700_000_000),
		v3SwapEvent(wad(-2).String(), wad(4).String(), 1_700_000_100),
	}

	path := filepath.Join(t.TempDir(), "events.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create input: %v", err)
	}
	enc := json.NewEncoder(file)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("write input: %v", err)
		}
	}
	if _, err := file.WriteString("not json\n"); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close input: %v", err)
	}

	state := &memState{}
	runner := NewRunner(RunnerConfig{StateStore: state}, f.handler, zap.NewNop())
	if err := runner.Run(context.Background(), path); err != nil {
		t.Fatalf("run: %v", err)
	}

	pool, err := f.mem.FindPool(context.Background(), testChainID, poolAddr)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	// 10 + 4 WETH of volume at $2000
	if pool.VolumeUsd == nil || pool.VolumeUsd.Cmp(wad(28_000)) != 0 {
		t.Fatalf("volume mismatch: %v", pool.VolumeUsd)
	}

	if !state.saved || state.last != 1_700_000_100 {
		t.Fatalf("state not checkpointed: %+v", state)
	}

	// rerun resumes past processed events
	if err := runner.Run(context.Background(), path); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	pool, err = f.mem.FindPool(context.Background(), testChainID, poolAddr)
	if err != nil {
		t.Fatalf("find pool: %v", err)
	}
	if pool.VolumeUsd.Cmp(wad(28_000)) != 0 {
		t.Fatalf("rerun reprocessed events: %v", pool.VolumeUsd)
	}
}
