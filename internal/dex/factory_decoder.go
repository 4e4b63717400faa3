package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketscope/internal/model"
)

// FactoryDecoder decodes pool-creation events across generations. Factory
// events identify the new pool in the payload rather than by the log address,
// so the emitted record's address is the pool itself (or the bytes32 id for
// hook pools). Asset/quote roles are left blank for v2 and v3 factories,
// which only report token ordering; the launchpad names them explicitly.
type FactoryDecoder struct {
	v2ABI         abi.ABI
	v3ABI         abi.ABI
	launchABI     abi.ABI
	topicProtocol map[string]model.Protocol
}

func NewFactoryDecoder() (*FactoryDecoder, error) {
	v2ABI, err := V2FactoryABI()
	if err != nil {
		return nil, err
	}
	v3ABI, err := V3FactoryABI()
	if err != nil {
		return nil, err
	}
	launchABI, err := HookLaunchABI()
	if err != nil {
		return nil, err
	}
	topicProtocol := map[string]model.Protocol{
		topicKey(v2ABI.Events["PairCreated"].ID.Hex()):     model.ProtocolV2,
		topicKey(v3ABI.Events["PoolCreated"].ID.Hex()):     model.ProtocolV3,
		topicKey(launchABI.Events["PoolCreated"].ID.Hex()): model.ProtocolHookV1,
	}
	return &FactoryDecoder{
		v2ABI:         v2ABI,
		v3ABI:         v3ABI,
		launchABI:     launchABI,
		topicProtocol: topicProtocol,
	}, nil
}

func (d *FactoryDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicProtocol[topicKey(topic0)]
	return ok
}

func (d *FactoryDecoder) Decode(log model.LogRecord) (*model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	protocol, ok := d.topicProtocol[topicKey(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	switch protocol {
	case model.ProtocolV2:
		return d.decodePairCreated(log)
	case model.ProtocolV3:
		return d.decodePoolCreated(log)
	case model.ProtocolHookV1:
		return d.decodeLaunchCreated(log)
	default:
		return nil, fmt.Errorf("unsupported factory protocol: %s", protocol)
	}
}

func (d *FactoryDecoder) decodePairCreated(log model.LogRecord) (*model.EventRecord, error) {
	event := d.v2ABI.Events["PairCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected pair created values: %d", len(values))
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return nil, err
	}

	decoded := model.PoolCreatedEventData{
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
	}
	rec, err := buildEventRecord(log, "PoolCreated", model.ProtocolV2, decoded)
	if err != nil {
		return nil, err
	}
	rec.Address = pair.Hex()
	return rec, nil
}

func (d *FactoryDecoder) decodePoolCreated(log model.LogRecord) (*model.EventRecord, error) {
	event := d.v3ABI.Events["PoolCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Fee    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected pool created values: %d", len(values))
	}
	pool, err := asAddress(values[1])
	if err != nil {
		return nil, err
	}

	decoded := model.PoolCreatedEventData{
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
		Fee:    uint32(indexed.Fee.Uint64()),
	}
	rec, err := buildEventRecord(log, "PoolCreated", model.ProtocolV3, decoded)
	if err != nil {
		return nil, err
	}
	rec.Address = pool.Hex()
	return rec, nil
}

func (d *FactoryDecoder) decodeLaunchCreated(log model.LogRecord) (*model.EventRecord, error) {
	event := d.launchABI.Events["PoolCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Id    common.Hash
		Asset common.Address
		Quote common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected launch created values: %d", len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}

	// Hook pools order currencies numerically, same as pool contracts.
	token0, token1 := indexed.Asset, indexed.Quote
	if bytes.Compare(token0.Bytes(), token1.Bytes()) > 0 {
		token0, token1 = token1, token0
	}

	decoded := model.PoolCreatedEventData{
		Token0:       token0.Hex(),
		Token1:       token1.Hex(),
		Asset:        indexed.Asset.Hex(),
		Quote:        indexed.Quote.Hex(),
		SqrtPriceX96: sqrtPrice.String(),
	}
	rec, err := buildEventRecord(log, "PoolCreated", model.ProtocolHookV1, decoded)
	if err != nil {
		return nil, err
	}
	rec.Address = indexed.Id.Hex()
	return rec, nil
}
