package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bridgesnap/internal/domain"
)

// LogSource is the chain-facing collaborator: tip and chain discovery plus
// one-shot log fetches for the configured contract.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLogRecord, error)
}

// CommitmentPublisher hands finished snapshot records to downstream
// consumers, e.g. a soundness verifier reading from Kafka.
type CommitmentPublisher interface {
	PublishCommitment(ctx context.Context, record domain.SnapshotRecord) error
}

type MonitorObserver interface {
	OnTip(tip uint64)
	OnSnapshot(record domain.SnapshotRecord, drift bool)
	OnPublishError(err error)
}

type MonitorConfig struct {
	Address      string
	Topic0       string
	Blocks       uint64
	MaxLogs      uint64
	PollInterval time.Duration
}

// Monitor periodically rebuilds the snapshot over a sliding window of recent
// blocks, archives the result and publishes the commitment.
type Monitor struct {
	source    LogSource
	archive   SnapshotArchive
	publisher CommitmentPublisher
	observer  MonitorObserver
	cfg       MonitorConfig
}

func NewMonitor(source LogSource, archive SnapshotArchive, publisher CommitmentPublisher, observer MonitorObserver, cfg MonitorConfig) (*Monitor, error) {
	if source == nil || archive == nil {
		return nil, errors.New("monitor dependencies must not be nil")
	}
	if cfg.Blocks == 0 {
		return nil, ErrInvalidBlockWindow
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Monitor{source: source, archive: archive, publisher: publisher, observer: observer, cfg: cfg}, nil
}

// RunOnce performs one monitoring cycle. The tip is read once and used for
// both range resolution and metadata, so one cycle never observes two
// different tips.
func (m *Monitor) RunOnce(ctx context.Context) (domain.SnapshotRecord, bool, error) {
	chainID, err := m.source.ChainID(ctx)
	if err != nil {
		return domain.SnapshotRecord{}, false, err
	}
	tip, err := m.source.LatestBlockNumber(ctx)
	if err != nil {
		return domain.SnapshotRecord{}, false, err
	}
	if m.observer != nil {
		m.observer.OnTip(tip)
	}

	fromBlock, toBlock, err := ResolveRange(RangeRequest{Blocks: m.cfg.Blocks}, tip)
	if err != nil {
		return domain.SnapshotRecord{}, false, err
	}

	raw, err := m.source.FetchLogs(ctx, fromBlock, toBlock)
	if err != nil {
		return domain.SnapshotRecord{}, false, err
	}

	snapshot := BuildSnapshot(raw, SnapshotParams{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		MaxLogs:   m.cfg.MaxLogs,
		Topic0:    m.cfg.Topic0,
	})

	record := domain.SnapshotRecord{
		ChainID:       chainID,
		Address:       m.cfg.Address,
		FromBlock:     fromBlock,
		ToBlock:       toBlock,
		Topic0:        m.cfg.Topic0,
		MaxLogs:       m.cfg.MaxLogs,
		LogCount:      snapshot.Meta.LogCount,
		UniqueTxCount: snapshot.Meta.UniqueTxCount,
		Commitment:    snapshot.Meta.CommitmentKeccak,
		CreatedAt:     time.Now().UTC(),
	}

	_, drift, err := ArchiveSnapshot(ctx, m.archive, record)
	if err != nil {
		return domain.SnapshotRecord{}, false, err
	}
	// A failed publish does not invalidate the snapshot; the archive already
	// holds the commitment.
	if m.publisher != nil {
		if err := m.publisher.PublishCommitment(ctx, record); err != nil {
			slog.Warn("commitment publish failed", "err", err)
			if m.observer != nil {
				m.observer.OnPublishError(err)
			}
		}
	}
	if m.observer != nil {
		m.observer.OnSnapshot(record, drift)
	}
	return record, drift, nil
}

// Run cycles until the context is cancelled. Cycle errors are returned to
// the caller; the transport does its own retrying, the monitor does not.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if _, _, err := m.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
	}
}
