package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketscope/internal/chain"
)

const aggregatorABIJSON = `[
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"internalType": "uint80", "name": "roundId", "type": "uint80"},
      {"internalType": "int256", "name": "answer", "type": "int256"},
      {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
      {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
      {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func getAggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// ChainlinkFeed reads USD prices from a Chainlink-compatible aggregator
// contract. The timestamp argument is advisory; aggregators serve the latest
// round and the engine tolerates the round lag.
type ChainlinkFeed struct {
	chain    *chain.Client
	address  common.Address
	decimals uint8

	mu     sync.Mutex
	cached *big.Int
	at     uint64
}

// cacheWindowSecs bounds how long a fetched round is reused before another
// contract call is made.
const cacheWindowSecs = 60

func NewChainlinkFeed(chainClient *chain.Client, address common.Address, decimals uint8) *ChainlinkFeed {
	return &ChainlinkFeed{chain: chainClient, address: address, decimals: decimals}
}

func (f *ChainlinkFeed) Decimals() uint8 {
	return f.decimals
}

// FetchPrice returns the aggregator's current answer, reusing a recent round
// when the requested timestamp falls inside the cache window.
func (f *ChainlinkFeed) FetchPrice(ctx context.Context, timestamp uint64) (*big.Int, error) {
	f.mu.Lock()
	if f.cached != nil && timestamp > 0 && f.at > 0 {
		var age uint64
		if timestamp > f.at {
			age = timestamp - f.at
		}
		if age < cacheWindowSecs {
			price := new(big.Int).Set(f.cached)
			f.mu.Unlock()
			return price, nil
		}
	}
	f.mu.Unlock()

	if f.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := getAggregatorABI()
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}

	data, err := parsed.Pack("latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("pack latestRoundData: %w", err)
	}
	msg := ethereum.CallMsg{To: &f.address, Data: data}
	resp, err := f.chain.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call latestRoundData: %w", err)
	}
	values, err := parsed.Unpack("latestRoundData", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack latestRoundData: %w", err)
	}

	answer, err := parseRoundAnswer(values)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cached = new(big.Int).Set(answer)
	f.at = timestamp
	f.mu.Unlock()

	return answer, nil
}

func parseRoundAnswer(values []interface{}) (*big.Int, error) {
	if len(values) != 5 {
		return nil, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("latestRoundData unexpected answer type %T", values[1])
	}
	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive oracle answer: %s", answer.String())
	}
	return new(big.Int).Set(answer), nil
}

// FixedFeed serves a constant price, used for USD-pegged quote currencies
// that need no oracle round trip.
type FixedFeed struct {
	price    *big.Int
	decimals uint8
}

func NewFixedFeed(price *big.Int, decimals uint8) *FixedFeed {
	return &FixedFeed{price: new(big.Int).Set(price), decimals: decimals}
}

func (f *FixedFeed) Decimals() uint8 {
	return f.decimals
}

func (f *FixedFeed) FetchPrice(_ context.Context, _ uint64) (*big.Int, error) {
	return new(big.Int).Set(f.price), nil
}
