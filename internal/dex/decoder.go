package dex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketscope/internal/model"
)

// ErrUnknownTopic is returned when no registered decoder recognizes a log.
var ErrUnknownTopic = errors.New("dex: unknown topic0")

// Decoder turns a raw chain log into a typed event record.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.EventRecord, error)
}

// Registry dispatches logs across protocol decoders in registration order.
type Registry struct {
	decoders []Decoder
}

func NewRegistry(decoders ...Decoder) *Registry {
	return &Registry{decoders: decoders}
}

// Decode finds the decoder that claims the log's topic0 and applies it.
func (r *Registry) Decode(log model.LogRecord) (*model.EventRecord, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	for _, d := range r.decoders {
		if d.CanDecode(log.Topics[0]) {
			return d.Decode(log)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, log.Topics[0])
}

func buildEventRecord(log model.LogRecord, name string, protocol model.Protocol, decoded interface{}) (*model.EventRecord, error) {
	payload, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return &model.EventRecord{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Protocol:    protocol,
		Timestamp:   log.Timestamp,
		Decoded:     payload,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func topicKey(topic0 string) string {
	return strings.ToLower(topic0)
}
