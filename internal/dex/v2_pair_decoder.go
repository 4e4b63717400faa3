package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketscope/internal/model"
)

// V2PairDecoder decodes constant-product pair events (Swap, Sync).
type V2PairDecoder struct {
	pairABI     abi.ABI
	topicToName map[string]string
}

func NewV2PairDecoder() (*V2PairDecoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	topicToName := map[string]string{
		topicKey(pairABI.Events["Swap"].ID.Hex()): "Swap",
		topicKey(pairABI.Events["Sync"].ID.Hex()): "Sync",
	}
	return &V2PairDecoder{pairABI: pairABI, topicToName: topicToName}, nil
}

func (d *V2PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[topicKey(topic0)]
	return ok
}

func (d *V2PairDecoder) Decode(log model.LogRecord) (*model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[topicKey(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	switch name {
	case "Swap":
		decoded, err := d.decodeSwap(log)
		if err != nil {
			return nil, err
		}
		return buildEventRecord(log, name, model.ProtocolV2, decoded)
	case "Sync":
		decoded, err := d.decodeSync(log)
		if err != nil {
			return nil, err
		}
		return buildEventRecord(log, name, model.ProtocolV2, decoded)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func (d *V2PairDecoder) decodeSwap(log model.LogRecord) (model.V2SwapEventData, error) {
	event := d.pairABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.V2SwapEventData{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.V2SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2SwapEventData{}, err
	}
	if len(values) != 4 {
		return model.V2SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0In, err := asBigInt(values[0])
	if err != nil {
		return model.V2SwapEventData{}, err
	}
	amount1In, err := asBigInt(values[1])
	if err != nil {
		return model.V2SwapEventData{}, err
	}
	amount0Out, err := asBigInt(values[2])
	if err != nil {
		return model.V2SwapEventData{}, err
	}
	amount1Out, err := asBigInt(values[3])
	if err != nil {
		return model.V2SwapEventData{}, err
	}

	return model.V2SwapEventData{
		Sender:     indexed.Sender.Hex(),
		To:         indexed.To.Hex(),
		Amount0In:  amount0In.String(),
		Amount1In:  amount1In.String(),
		Amount0Out: amount0Out.String(),
		Amount1Out: amount1Out.String(),
	}, nil
}

func (d *V2PairDecoder) decodeSync(log model.LogRecord) (model.V2SyncEventData, error) {
	event := d.pairABI.Events["Sync"]
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.V2SyncEventData{}, err
	}
	if len(values) != 2 {
		return model.V2SyncEventData{}, fmt.Errorf("unexpected sync values: %d", len(values))
	}

	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.V2SyncEventData{}, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.V2SyncEventData{}, err
	}

	return model.V2SyncEventData{
		Reserve0: reserve0.String(),
		Reserve1: reserve1.String(),
	}, nil
}
