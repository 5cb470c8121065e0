package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type MessageType string

const (
	MessageTypeCommitment MessageType = "commitment"
)

// Message is the wire envelope for published snapshot commitments. Field
// names are part of the consumer contract.
type Message struct {
	Type          MessageType `json:"type"`
	ChainID       uint64      `json:"chain_id"`
	TraceID       string      `json:"trace_id,omitempty"`
	Address       string      `json:"address"`
	FromBlock     uint64      `json:"from_block"`
	ToBlock       uint64      `json:"to_block"`
	Topic0        string      `json:"topic0,omitempty"`
	MaxLogs       uint64      `json:"max_logs"`
	LogCount      int         `json:"log_count"`
	UniqueTxCount int         `json:"unique_tx_count"`
	Commitment    string      `json:"commitment"`
	CreatedAt     time.Time   `json:"created_at"`
}

func Encode(msg Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, errors.New("message type is required")
	}
	if msg.ChainID == 0 {
		return nil, errors.New("chain_id is required")
	}
	if msg.Commitment == "" {
		return nil, errors.New("commitment is required")
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("message type is missing")
	}
	if msg.ChainID == 0 {
		return Message{}, errors.New("chain_id is missing")
	}
	if msg.Commitment == "" {
		return Message{}, errors.New("commitment is missing")
	}
	return msg, nil
}
