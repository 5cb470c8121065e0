package httpapi

import (
	"sync"
	"time"

	"bridgesnap/internal/domain"
)

// Metrics collects monitor progress counters. It implements
// application.MonitorObserver.
type Metrics struct {
	mu             sync.RWMutex
	startTime      time.Time
	latestBlock    uint64
	snapshotsBuilt uint64
	driftCount     uint64
	lastFromBlock  uint64
	lastToBlock    uint64
	lastLogCount   int
	lastUniqueTx   int
	lastCommitment string
	lastSnapshotAt time.Time
	publishErrors  uint64
	cycleErrors    uint64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) OnTip(tip uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestBlock = tip
}

func (m *Metrics) OnSnapshot(record domain.SnapshotRecord, drift bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotsBuilt++
	if drift {
		m.driftCount++
	}
	m.lastFromBlock = record.FromBlock
	m.lastToBlock = record.ToBlock
	m.lastLogCount = record.LogCount
	m.lastUniqueTx = record.UniqueTxCount
	m.lastCommitment = record.Commitment
	m.lastSnapshotAt = record.CreatedAt
}

func (m *Metrics) OnPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrors++
}

func (m *Metrics) IncCycleErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycleErrors++
}

type MetricsSnapshot struct {
	StartTime      time.Time
	LatestBlock    uint64
	SnapshotsBuilt uint64
	DriftCount     uint64
	LastFromBlock  uint64
	LastToBlock    uint64
	LastLogCount   int
	LastUniqueTx   int
	LastCommitment string
	LastSnapshotAt time.Time
	PublishErrors  uint64
	CycleErrors    uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		StartTime:      m.startTime,
		LatestBlock:    m.latestBlock,
		SnapshotsBuilt: m.snapshotsBuilt,
		DriftCount:     m.driftCount,
		LastFromBlock:  m.lastFromBlock,
		LastToBlock:    m.lastToBlock,
		LastLogCount:   m.lastLogCount,
		LastUniqueTx:   m.lastUniqueTx,
		LastCommitment: m.lastCommitment,
		LastSnapshotAt: m.lastSnapshotAt,
		PublishErrors:  m.publishErrors,
		CycleErrors:    m.cycleErrors,
	}
}
