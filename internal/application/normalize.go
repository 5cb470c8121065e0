package application

import (
	"bridgesnap/internal/domain"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NormalizeLogRecord converts a raw log into its canonical form. Hex fields
// are lowercase and 0x-prefixed with no padding beyond the natural byte
// length; topics are always a non-nil slice so the canonical encoding of an
// empty topic list is [] rather than null.
func NormalizeLogRecord(raw domain.RawLogRecord) domain.NormalizedLogRecord {
	topics := make([]string, len(raw.Topics))
	for i, topic := range raw.Topics {
		topics[i] = topic.Hex()
	}
	return domain.NormalizedLogRecord{
		BlockNumber:     raw.BlockNumber,
		TransactionHash: raw.TxHash.Hex(),
		LogIndex:        raw.LogIndex,
		Data:            hexutil.Encode(raw.Data),
		Topics:          topics,
	}
}

// NormalizeLogRecords maps NormalizeLogRecord over a batch, preserving the
// arrival order.
func NormalizeLogRecords(raw []domain.RawLogRecord) []domain.NormalizedLogRecord {
	records := make([]domain.NormalizedLogRecord, len(raw))
	for i, record := range raw {
		records[i] = NormalizeLogRecord(record)
	}
	return records
}
