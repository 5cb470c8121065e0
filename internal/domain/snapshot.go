package domain

import "time"

// SnapshotMeta describes the window and commitment of one snapshot.
// Effective bounds are the min/max block observed among retained logs and
// fall back to the requested bounds when no logs were retained.
type SnapshotMeta struct {
	FromBlockRequested uint64  `json:"fromBlockRequested"`
	ToBlockRequested   uint64  `json:"toBlockRequested"`
	FromBlockEffective uint64  `json:"fromBlockEffective"`
	ToBlockEffective   uint64  `json:"toBlockEffective"`
	LogCount           int     `json:"logCount"`
	UniqueTxCount      int     `json:"uniqueTxCount"`
	MaxLogs            uint64  `json:"maxLogs"`
	Topic0Filter       *string `json:"topic0Filter"`
	CommitmentKeccak   string  `json:"commitmentKeccak"`
}

// Snapshot is the final aggregate: metadata plus the ordered, normalized
// log sequence. CommitmentKeccak is always the keccak of the canonical
// encoding of exactly Logs, in order.
type Snapshot struct {
	Meta SnapshotMeta          `json:"meta"`
	Logs []NormalizedLogRecord `json:"logs"`
}

// SnapshotKey identifies the parameters a snapshot was built from. Two runs
// with the same key over unchanged chain data should produce the same
// commitment; the archive uses the key to detect drift.
type SnapshotKey struct {
	ChainID   uint64
	Address   string
	FromBlock uint64
	ToBlock   uint64
	Topic0    string
	MaxLogs   uint64
}

// SnapshotRecord is the archived form of a snapshot: key, counts and
// commitment, without the log bodies.
type SnapshotRecord struct {
	ChainID       uint64
	Address       string
	FromBlock     uint64
	ToBlock       uint64
	Topic0        string
	MaxLogs       uint64
	LogCount      int
	UniqueTxCount int
	Commitment    string
	CreatedAt     time.Time
}

// Key returns the parameter key of an archived snapshot.
func (r SnapshotRecord) Key() SnapshotKey {
	return SnapshotKey{
		ChainID:   r.ChainID,
		Address:   r.Address,
		FromBlock: r.FromBlock,
		ToBlock:   r.ToBlock,
		Topic0:    r.Topic0,
		MaxLogs:   r.MaxLogs,
	}
}
