package domain

import "github.com/ethereum/go-ethereum/common"

// RawLogRecord is one contract log as returned by the chain, before
// canonicalization. Immutable once received from the RPC layer.
type RawLogRecord struct {
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint64
	Data        []byte
	Topics      []common.Hash
}

// NormalizedLogRecord is the canonical form of a RawLogRecord: byte-like
// fields as lowercase 0x-prefixed hex, integers as plain integers. Two raw
// records with identical field values always normalize to identical
// normalized records.
type NormalizedLogRecord struct {
	BlockNumber     uint64   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        uint64   `json:"logIndex"`
	Data            string   `json:"data"`
	Topics          []string `json:"topics"`
}
