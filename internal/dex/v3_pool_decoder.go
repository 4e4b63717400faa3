package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketscope/internal/model"
)

// V3PoolDecoder decodes concentrated-liquidity pool events (Swap, Mint,
// Burn).
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

func NewV3PoolDecoder() (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	topicToName := map[string]string{
		topicKey(poolABI.Events["Swap"].ID.Hex()): "Swap",
		topicKey(poolABI.Events["Mint"].ID.Hex()): "Mint",
		topicKey(poolABI.Events["Burn"].ID.Hex()): "Burn",
	}
	return &V3PoolDecoder{poolABI: poolABI, topicToName: topicToName}, nil
}

func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[topicKey(topic0)]
	return ok
}

func (d *V3PoolDecoder) Decode(log model.LogRecord) (*model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[topicKey(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}

	switch name {
	case "Swap":
		decoded, err := d.decodeSwap(log)
		if err != nil {
			return nil, err
		}
		return buildEventRecord(log, name, model.ProtocolV3, decoded)
	case "Mint", "Burn":
		decoded, err := d.decodeLiquidity(log, name)
		if err != nil {
			return nil, err
		}
		return buildEventRecord(log, name, model.ProtocolV3, decoded)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func (d *V3PoolDecoder) decodeSwap(log model.LogRecord) (model.V3SwapEventData, error) {
	event := d.poolABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V3SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V3SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.V3SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.V3SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.V3SwapEventData{}, err
	}

	return model.V3SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
	}, nil
}

// decodeLiquidity folds Mint and Burn into a single signed-delta payload.
// Mint adds liquidity to the pool so its amounts stay positive; Burn removes
// it so the amounts are negated.
func (d *V3PoolDecoder) decodeLiquidity(log model.LogRecord, name string) (model.LiquidityEventData, error) {
	event := d.poolABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.LiquidityEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.LiquidityEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEventData{}, err
	}

	var amount0, amount1 *big.Int
	switch name {
	case "Mint":
		if len(values) != 4 {
			return model.LiquidityEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
		}
		if amount0, err = asBigInt(values[2]); err != nil {
			return model.LiquidityEventData{}, err
		}
		if amount1, err = asBigInt(values[3]); err != nil {
			return model.LiquidityEventData{}, err
		}
	case "Burn":
		if len(values) != 3 {
			return model.LiquidityEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
		}
		if amount0, err = asBigInt(values[1]); err != nil {
			return model.LiquidityEventData{}, err
		}
		if amount1, err = asBigInt(values[2]); err != nil {
			return model.LiquidityEventData{}, err
		}
		amount0.Neg(amount0)
		amount1.Neg(amount1)
	default:
		return model.LiquidityEventData{}, fmt.Errorf("unsupported liquidity event: %s", name)
	}

	return model.LiquidityEventData{
		Owner:   indexed.Owner.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}
