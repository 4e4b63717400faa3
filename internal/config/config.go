package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ProcessConfig holds configuration for the event-processing command.
type ProcessConfig struct {
	RPCURL         string
	Input          string
	PGDSN          string
	ChainID        uint64
	NativeToken    string
	NativeFeed     string
	NativeDecimals uint8
	Partners       []string
	SaveEvery      int
	RecomputeFrom  string
	LogLevel       string
}

// LoadProcess merges config file, environment variables, and flags into
// ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("save-every", 1000)
		v.SetDefault("native-decimals", 18)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ProcessConfig{}, err
	}

	cfg := ProcessConfig{
		RPCURL:         v.GetString("rpc"),
		Input:          v.GetString("in"),
		PGDSN:          v.GetString("pg-dsn"),
		ChainID:        v.GetUint64("chain-id"),
		NativeToken:    v.GetString("native-token"),
		NativeFeed:     v.GetString("native-feed"),
		NativeDecimals: uint8(v.GetUint("native-decimals")),
		Partners:       getStringSlice(v, "partner"),
		SaveEvery:      v.GetInt("save-every"),
		RecomputeFrom:  v.GetString("recompute-from"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// DecodeConfig holds configuration for the log-decoding command.
type DecodeConfig struct {
	In       string
	Out      string
	Errors   string
	LogLevel string
}

// LoadDecode merges config file, environment variables, and flags into
// DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/events.jsonl")
		v.SetDefault("errors", "./data/decode_errors.jsonl")
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Errors:   v.GetString("errors"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

// Partner is one recognized quote token declared in configuration. Feed is a
// Chainlink-compatible aggregator address; USD-pegged partners may omit it
// and are priced at exactly one dollar.
type Partner struct {
	Symbol    string
	Address   string
	Decimals  uint8
	Feed      string
	UsdPegged bool
}

// ParsePartners parses partner declarations of the form
// symbol:address:decimals[:feed][:usd].
func ParsePartners(entries []string) ([]Partner, error) {
	out := make([]Partner, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid partner %q: need symbol:address:decimals", entry)
		}

		decimals, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid partner %q: decimals: %w", entry, err)
		}

		partner := Partner{
			Symbol:   parts[0],
			Address:  parts[1],
			Decimals: uint8(decimals),
		}
		for _, extra := range parts[3:] {
			if strings.EqualFold(extra, "usd") {
				partner.UsdPegged = true
				continue
			}
			partner.Feed = extra
		}
		if partner.Feed == "" && !partner.UsdPegged {
			return nil, fmt.Errorf("invalid partner %q: need a feed address or the usd marker", entry)
		}
		out = append(out, partner)
	}
	return out, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
