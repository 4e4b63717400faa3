package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "DEX market metrics engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Process decoded events into pool and asset metrics",
		RunE:  runProcess,
	}

	processCmd.Flags().String("rpc", "", "chain RPC URL")
	processCmd.Flags().String("in", "", "input decoded events JSONL")
	processCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	processCmd.Flags().Uint64("chain-id", 0, "chain id")
	processCmd.Flags().String("native-token", "", "wrapped gas token address")
	processCmd.Flags().String("native-feed", "", "native token USD aggregator address")
	processCmd.Flags().Uint("native-decimals", 18, "native token decimals")
	processCmd.Flags().StringSlice("partner", nil, "recognized quote tokens (symbol:address:decimals[:feed][:usd])")
	processCmd.Flags().Int("save-every", 1000, "events between state checkpoints")
	processCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	processCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(processCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
