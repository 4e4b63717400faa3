package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketscope/internal/bucket"
	"marketscope/internal/chain"
	"marketscope/internal/config"
	"marketscope/internal/dex"
	"marketscope/internal/handler"
	"marketscope/internal/oracle"
	"marketscope/internal/poolcache"
	"marketscope/internal/quote"
	"marketscope/internal/storage/postgres"
	"marketscope/internal/swap"
)

// usdFeedDecimals is the scale of Chainlink USD aggregators.
const usdFeedDecimals = 8

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProcess(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if cfg.NativeToken == "" {
		return fmt.Errorf("native token is required")
	}
	if !common.IsHexAddress(cfg.NativeFeed) {
		return fmt.Errorf("native feed must be a valid aggregator address")
	}

	partners, err := config.ParsePartners(cfg.Partners)
	if err != nil {
		return fmt.Errorf("parse partners: %w", err)
	}

	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	if chainID, err := chainClient.GetChainID(ctx); err != nil {
		logger.Warn("chain id check failed", zap.Error(err))
	} else if chainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("rpc chain id %d does not match configured chain id %d", chainID.Uint64(), cfg.ChainID)
	}

	dbStore, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbStore.Close()

	quoteCfg := quote.Config{
		NativeToken:    cfg.NativeToken,
		NativeDecimals: cfg.NativeDecimals,
		NativeFeed:     oracle.NewChainlinkFeed(chainClient, common.HexToAddress(cfg.NativeFeed), usdFeedDecimals),
	}
	for _, p := range partners {
		feed, err := partnerFeed(chainClient, p)
		if err != nil {
			return err
		}
		quoteCfg.Partners = append(quoteCfg.Partners, quote.Partner{
			Symbol:         p.Symbol,
			Address:        p.Address,
			Decimals:       p.Decimals,
			UsdDenominated: p.UsdPegged,
			Feed:           feed,
		})
	}

	directory := handler.NewEntityDirectory(dbStore, cfg.ChainID)
	resolver := quote.NewResolver(quoteCfg, directory, logger)

	cache := poolcache.New()
	buckets := bucket.NewAggregator(dbStore, logger)
	orch := swap.NewOrchestrator(dbStore, buckets, cache, logger)
	tokens := dex.NewERC20Reader(chainClient, dex.NewTokenMetaCache(), logger)

	h := handler.New(dbStore, cache, resolver, buckets, orch, tokens, logger)

	runner := handler.NewRunner(handler.RunnerConfig{
		SaveEvery:     cfg.SaveEvery,
		RecomputeFrom: recomputeFrom,
		StateStore:    &handler.DBStateStore{Store: dbStore, Name: fmt.Sprintf("engine:%d", cfg.ChainID)},
	}, h, logger)

	logger.Info("process start",
		zap.String("input", cfg.Input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("native_token", cfg.NativeToken),
		zap.Int("partners", len(partners)),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	return runner.Run(ctx, cfg.Input)
}

// partnerFeed builds the price feed for one recognized quote token. USD-pegged
// partners without an aggregator are priced at exactly one dollar.
func partnerFeed(chainClient *chain.Client, p config.Partner) (quote.PriceFeed, error) {
	if p.Feed != "" {
		if !common.IsHexAddress(p.Feed) {
			return nil, fmt.Errorf("partner %s: invalid feed address %q", p.Symbol, p.Feed)
		}
		return oracle.NewChainlinkFeed(chainClient, common.HexToAddress(p.Feed), usdFeedDecimals), nil
	}
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(usdFeedDecimals), nil)
	return oracle.NewFixedFeed(one, usdFeedDecimals), nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
