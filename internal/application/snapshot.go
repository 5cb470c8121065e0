package application

import (
	"sort"

	"bridgesnap/internal/domain"
)

// SnapshotParams are the resolved parameters a snapshot is built from.
// FromBlock and ToBlock must already be resolved via ResolveRange; MaxLogs
// zero means unlimited.
type SnapshotParams struct {
	FromBlock uint64
	ToBlock   uint64
	MaxLogs   uint64
	Topic0    string
}

// BuildSnapshot runs the full pipeline over one fetched batch: normalize,
// truncate, sort, encode, hash, assemble. It is a pure function of the raw
// batch and the parameters.
//
// Truncation keeps the first MaxLogs records in RPC arrival order, before
// sorting. Under truncation the retained subset therefore depends on the
// RPC return order: the same log set fetched in a different order can yield
// a different commitment. Callers can detect a truncated view from
// Meta.MaxLogs and Meta.LogCount.
func BuildSnapshot(raw []domain.RawLogRecord, params SnapshotParams) domain.Snapshot {
	records := NormalizeLogRecords(raw)
	if params.MaxLogs > 0 && uint64(len(records)) > params.MaxLogs {
		records = records[:params.MaxLogs]
	}

	sort.SliceStable(records, func(a, b int) bool {
		if records[a].BlockNumber != records[b].BlockNumber {
			return records[a].BlockNumber < records[b].BlockNumber
		}
		if records[a].TransactionHash != records[b].TransactionHash {
			return records[a].TransactionHash < records[b].TransactionHash
		}
		return records[a].LogIndex < records[b].LogIndex
	})

	return assembleSnapshot(records, params)
}

func assembleSnapshot(records []domain.NormalizedLogRecord, params SnapshotParams) domain.Snapshot {
	// An absent filter renders as null, not "".
	var topic0Filter *string
	if params.Topic0 != "" {
		topic0Filter = &params.Topic0
	}

	fromEffective, toEffective := params.FromBlock, params.ToBlock
	txSeen := make(map[string]struct{}, len(records))
	for i, record := range records {
		if i == 0 || record.BlockNumber < fromEffective {
			fromEffective = record.BlockNumber
		}
		if i == 0 || record.BlockNumber > toEffective {
			toEffective = record.BlockNumber
		}
		txSeen[record.TransactionHash] = struct{}{}
	}

	return domain.Snapshot{
		Meta: domain.SnapshotMeta{
			FromBlockRequested: params.FromBlock,
			ToBlockRequested:   params.ToBlock,
			FromBlockEffective: fromEffective,
			ToBlockEffective:   toEffective,
			LogCount:           len(records),
			UniqueTxCount:      len(txSeen),
			MaxLogs:            params.MaxLogs,
			Topic0Filter:       topic0Filter,
			CommitmentKeccak:   Commitment(records),
		},
		Logs: records,
	}
}
