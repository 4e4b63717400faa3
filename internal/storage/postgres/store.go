package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketscope/internal/model"
	"marketscope/internal/store"
)

// Store provides Postgres persistence for pools, assets and trade buckets.
// Big integers are stored as NUMERIC and travel as decimal strings.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) FindPool(ctx context.Context, chainID uint64, address string) (*model.Pool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT chain_id, address, protocol, asset, quote, asset_decimals, quote_decimals, is_asset_token0,
		       sqrt_price_x96, asset_balance, quote_balance, total_supply, proceeds,
		       price_wad, market_cap_usd, liquidity_usd, volume_usd, holder_count,
		       created_at_block, created_at_ts
		FROM pools
		WHERE chain_id = $1 AND lower(address) = lower($2)
	`, int64(chainID), address)

	var (
		pool     model.Pool
		chain    int64
		protocol string
		sqrtStr, assetBalStr, quoteBalStr, supplyStr, proceedsStr *string
		priceStr, capStr, liqStr, volStr                          *string
		holders, createdBlock, createdTs                          int64
	)
	err := row.Scan(&chain, &pool.Address, &protocol, &pool.Asset, &pool.Quote,
		&pool.AssetDecimals, &pool.QuoteDecimals, &pool.IsAssetToken0,
		&sqrtStr, &assetBalStr, &quoteBalStr, &supplyStr, &proceedsStr,
		&priceStr, &capStr, &liqStr, &volStr, &holders,
		&createdBlock, &createdTs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	pool.ChainID = uint64(chain)
	pool.Protocol = model.Protocol(protocol)
	pool.HolderCount = uint64(holders)
	pool.CreatedAtBlock = uint64(createdBlock)
	pool.CreatedAt = uint64(createdTs)
	if pool.SqrtPriceX96, err = scanBig(sqrtStr); err != nil {
		return nil, err
	}
	if pool.AssetBalance, err = scanBig(assetBalStr); err != nil {
		return nil, err
	}
	if pool.QuoteBalance, err = scanBig(quoteBalStr); err != nil {
		return nil, err
	}
	if pool.TotalSupply, err = scanBig(supplyStr); err != nil {
		return nil, err
	}
	if pool.Proceeds, err = scanBig(proceedsStr); err != nil {
		return nil, err
	}
	if pool.PriceWad, err = scanBig(priceStr); err != nil {
		return nil, err
	}
	if pool.MarketCapUsd, err = scanBig(capStr); err != nil {
		return nil, err
	}
	if pool.LiquidityUsd, err = scanBig(liqStr); err != nil {
		return nil, err
	}
	if pool.VolumeUsd, err = scanBig(volStr); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (s *Store) InsertPool(ctx context.Context, pool model.Pool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pools (
			chain_id, address, protocol, asset, quote, asset_decimals, quote_decimals, is_asset_token0,
			sqrt_price_x96, asset_balance, quote_balance, total_supply, proceeds,
			price_wad, market_cap_usd, liquidity_usd, volume_usd, holder_count,
			created_at_block, created_at_ts, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now())
		ON CONFLICT (chain_id, address) DO NOTHING
	`,
		int64(pool.ChainID),
		strings.ToLower(pool.Address),
		string(pool.Protocol),
		strings.ToLower(pool.Asset),
		strings.ToLower(pool.Quote),
		pool.AssetDecimals,
		pool.QuoteDecimals,
		pool.IsAssetToken0,
		numeric(pool.SqrtPriceX96),
		numeric(pool.AssetBalance),
		numeric(pool.QuoteBalance),
		numeric(pool.TotalSupply),
		numeric(pool.Proceeds),
		numeric(pool.PriceWad),
		numeric(pool.MarketCapUsd),
		numeric(pool.LiquidityUsd),
		numeric(pool.VolumeUsd),
		int64(pool.HolderCount),
		int64(pool.CreatedAtBlock),
		int64(pool.CreatedAt),
	)
	return err
}

func (s *Store) UpdatePool(ctx context.Context, chainID uint64, address string, patch model.PoolPatch) error {
	set, args := poolPatchSet(patch)
	if len(set) == 0 {
		return nil
	}
	args = append(args, int64(chainID), address)
	query := fmt.Sprintf(`
		UPDATE pools SET %s, updated_at = now()
		WHERE chain_id = $%d AND lower(address) = lower($%d)
	`, strings.Join(set, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func poolPatchSet(patch model.PoolPatch) ([]string, []any) {
	set := make([]string, 0, 10)
	args := make([]any, 0, 10)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.SqrtPriceX96 != nil {
		add("sqrt_price_x96", patch.SqrtPriceX96.String())
	}
	if patch.AssetBalance != nil {
		add("asset_balance", patch.AssetBalance.String())
	}
	if patch.QuoteBalance != nil {
		add("quote_balance", patch.QuoteBalance.String())
	}
	if patch.TotalSupply != nil {
		add("total_supply", patch.TotalSupply.String())
	}
	if patch.Proceeds != nil {
		add("proceeds", patch.Proceeds.String())
	}
	if patch.PriceWad != nil {
		add("price_wad", patch.PriceWad.String())
	}
	if patch.MarketCapUsd != nil {
		add("market_cap_usd", patch.MarketCapUsd.String())
	}
	if patch.LiquidityUsd != nil {
		add("liquidity_usd", patch.LiquidityUsd.String())
	}
	if patch.VolumeUsd != nil {
		add("volume_usd", patch.VolumeUsd.String())
	}
	if patch.HolderCount != nil {
		add("holder_count", int64(*patch.HolderCount))
	}
	return set, args
}

func (s *Store) FindAsset(ctx context.Context, chainID uint64, address string) (*model.Asset, error) {
	return s.findAsset(ctx, chainID, address, false)
}

func (s *Store) FindCreatorCoin(ctx context.Context, chainID uint64, address string) (*model.Asset, error) {
	return s.findAsset(ctx, chainID, address, true)
}

func (s *Store) findAsset(ctx context.Context, chainID uint64, address string, creatorOnly bool) (*model.Asset, error) {
	query := `
		SELECT chain_id, address, symbol, decimals, is_creator_coin, primary_pool,
		       price_wad, market_cap_usd, liquidity_usd, volume_usd, percent_change_24h, updated_at_ts
		FROM assets
		WHERE chain_id = $1 AND lower(address) = lower($2)
	`
	if creatorOnly {
		query += ` AND is_creator_coin AND primary_pool <> ''`
	}
	row := s.pool.QueryRow(ctx, query, int64(chainID), address)

	var (
		asset                            model.Asset
		chain, updatedTs                 int64
		priceStr, capStr, liqStr, volStr *string
	)
	err := row.Scan(&chain, &asset.Address, &asset.Symbol, &asset.Decimals,
		&asset.IsCreatorCoin, &asset.PrimaryPool,
		&priceStr, &capStr, &liqStr, &volStr, &asset.PercentChange24, &updatedTs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	asset.ChainID = uint64(chain)
	asset.UpdatedAt = uint64(updatedTs)
	if asset.PriceWad, err = scanBig(priceStr); err != nil {
		return nil, err
	}
	if asset.MarketCapUsd, err = scanBig(capStr); err != nil {
		return nil, err
	}
	if asset.LiquidityUsd, err = scanBig(liqStr); err != nil {
		return nil, err
	}
	if asset.VolumeUsd, err = scanBig(volStr); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *Store) InsertAsset(ctx context.Context, asset model.Asset) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assets (
			chain_id, address, symbol, decimals, is_creator_coin, primary_pool,
			price_wad, market_cap_usd, liquidity_usd, volume_usd, percent_change_24h,
			updated_at_ts, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
		ON CONFLICT (chain_id, address) DO UPDATE SET
			symbol = CASE WHEN EXCLUDED.symbol <> '' THEN EXCLUDED.symbol ELSE assets.symbol END,
			decimals = EXCLUDED.decimals,
			is_creator_coin = assets.is_creator_coin OR EXCLUDED.is_creator_coin,
			primary_pool = CASE WHEN EXCLUDED.primary_pool <> '' THEN EXCLUDED.primary_pool ELSE assets.primary_pool END,
			price_wad = EXCLUDED.price_wad,
			market_cap_usd = EXCLUDED.market_cap_usd,
			liquidity_usd = EXCLUDED.liquidity_usd,
			volume_usd = EXCLUDED.volume_usd,
			updated_at_ts = EXCLUDED.updated_at_ts,
			updated_at = now()
	`,
		int64(asset.ChainID),
		strings.ToLower(asset.Address),
		asset.Symbol,
		asset.Decimals,
		asset.IsCreatorCoin,
		strings.ToLower(asset.PrimaryPool),
		numeric(asset.PriceWad),
		numeric(asset.MarketCapUsd),
		numeric(asset.LiquidityUsd),
		numeric(asset.VolumeUsd),
		asset.PercentChange24,
		int64(asset.UpdatedAt),
	)
	return err
}

func (s *Store) UpdateAsset(ctx context.Context, chainID uint64, address string, patch model.AssetPatch) error {
	set := make([]string, 0, 6)
	args := make([]any, 0, 6)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.PriceWad != nil {
		add("price_wad", patch.PriceWad.String())
	}
	if patch.MarketCapUsd != nil {
		add("market_cap_usd", patch.MarketCapUsd.String())
	}
	if patch.LiquidityUsd != nil {
		add("liquidity_usd", patch.LiquidityUsd.String())
	}
	if patch.VolumeUsd != nil {
		add("volume_usd", patch.VolumeUsd.String())
	}
	if patch.PercentChange24 != nil {
		add("percent_change_24h", *patch.PercentChange24)
	}
	if patch.UpdatedAt != nil {
		add("updated_at_ts", int64(*patch.UpdatedAt))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, int64(chainID), address)
	query := fmt.Sprintf(`
		UPDATE assets SET %s, updated_at = now()
		WHERE chain_id = $%d AND lower(address) = lower($%d)
	`, strings.Join(set, ", "), len(args)-1, len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpsertBucket(ctx context.Context, bucket model.Bucket) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_buckets (
			chain_id, pool_address, window_size_seconds, window_start_ts,
			open, high, low, close, vwap,
			volume_usd, volume_token0, volume_token1, fees_usd,
			tx_count, buy_count, sell_count, holder_count, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())
		ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			vwap = EXCLUDED.vwap,
			volume_usd = EXCLUDED.volume_usd,
			volume_token0 = EXCLUDED.volume_token0,
			volume_token1 = EXCLUDED.volume_token1,
			fees_usd = EXCLUDED.fees_usd,
			tx_count = EXCLUDED.tx_count,
			buy_count = EXCLUDED.buy_count,
			sell_count = EXCLUDED.sell_count,
			holder_count = EXCLUDED.holder_count,
			updated_at = now()
	`,
		int64(bucket.ChainID),
		strings.ToLower(bucket.PoolAddress),
		int64(bucket.WindowSecs),
		int64(bucket.Start),
		numeric(bucket.Open),
		numeric(bucket.High),
		numeric(bucket.Low),
		numeric(bucket.Close),
		numeric(bucket.Vwap),
		numeric(bucket.VolumeUsd),
		numeric(bucket.VolumeToken0),
		numeric(bucket.VolumeToken1),
		numeric(bucket.FeesUsd),
		int64(bucket.TxCount),
		int64(bucket.BuyCount),
		int64(bucket.SellCount),
		int64(bucket.HolderCount),
	)
	return err
}

// LoadState returns the engine's last processed timestamp for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts the engine's last processed timestamp for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}

func numeric(value *big.Int) any {
	if value == nil {
		return nil
	}
	return value.String()
}

func scanBig(value *string) (*big.Int, error) {
	if value == nil {
		return nil, nil
	}
	out, ok := new(big.Int).SetString(*value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value: %q", *value)
	}
	return out, nil
}
