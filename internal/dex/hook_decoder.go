package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketscope/internal/model"
)

// HookDecoder decodes singleton-manager swap events. Both hook generations
// emit through a shared manager contract and identify the pool by a bytes32
// id carried in the payload rather than by the log address.
type HookDecoder struct {
	managerABI    abi.ABI
	launchABI     abi.ABI
	topicProtocol map[string]model.Protocol
}

func NewHookDecoder() (*HookDecoder, error) {
	managerABI, err := HookManagerABI()
	if err != nil {
		return nil, err
	}
	launchABI, err := HookLaunchABI()
	if err != nil {
		return nil, err
	}
	topicProtocol := map[string]model.Protocol{
		topicKey(managerABI.Events["Swap"].ID.Hex()): model.ProtocolHookV2,
		topicKey(launchABI.Events["Swap"].ID.Hex()):  model.ProtocolHookV1,
	}
	return &HookDecoder{
		managerABI:    managerABI,
		launchABI:     launchABI,
		topicProtocol: topicProtocol,
	}, nil
}

func (d *HookDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicProtocol[topicKey(topic0)]
	return ok
}

func (d *HookDecoder) Decode(log model.LogRecord) (*model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	protocol, ok := d.topicProtocol[topicKey(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	var decoded model.HookSwapEventData
	var err error
	switch protocol {
	case model.ProtocolHookV2:
		decoded, err = d.decodeManagerSwap(log)
	case model.ProtocolHookV1:
		decoded, err = d.decodeLaunchSwap(log)
	default:
		return nil, fmt.Errorf("unsupported hook protocol: %s", protocol)
	}
	if err != nil {
		return nil, err
	}
	return buildEventRecord(log, "Swap", protocol, decoded)
}

func (d *HookDecoder) decodeManagerSwap(log model.LogRecord) (model.HookSwapEventData, error) {
	event := d.managerABI.Events["Swap"]
	id, sender, err := hookIndexed(event, log.Topics)
	if err != nil {
		return model.HookSwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	if len(values) != 6 {
		return model.HookSwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	fee, err := asBigInt(values[5])
	if err != nil {
		return model.HookSwapEventData{}, err
	}

	return model.HookSwapEventData{
		PoolID:       id.Hex(),
		Sender:       sender.Hex(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		Fee:          uint32(fee.Uint64()),
	}, nil
}

func (d *HookDecoder) decodeLaunchSwap(log model.LogRecord) (model.HookSwapEventData, error) {
	event := d.launchABI.Events["Swap"]
	id, sender, err := hookIndexed(event, log.Topics)
	if err != nil {
		return model.HookSwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	if len(values) != 4 {
		return model.HookSwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.HookSwapEventData{}, err
	}
	proceeds, err := asBigInt(values[3])
	if err != nil {
		return model.HookSwapEventData{}, err
	}

	return model.HookSwapEventData{
		PoolID:        id.Hex(),
		Sender:        sender.Hex(),
		Amount0:       amount0.String(),
		Amount1:       amount1.String(),
		SqrtPriceX96:  sqrtPrice.String(),
		TotalProceeds: proceeds.String(),
	}, nil
}

func hookIndexed(event abi.Event, topics []string) (common.Hash, common.Address, error) {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	var indexed struct {
		Id     common.Hash
		Sender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return common.Hash{}, common.Address{}, fmt.Errorf("parse topics: %w", err)
	}
	return indexed.Id, indexed.Sender, nil
}
