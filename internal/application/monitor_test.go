package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"bridgesnap/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

type mockSource struct {
	tip     uint64
	chainID uint64
	logs    []domain.RawLogRecord
	fetches int
}

func (m *mockSource) LatestBlockNumber(ctx context.Context) (uint64, error) { return m.tip, nil }
func (m *mockSource) ChainID(ctx context.Context) (uint64, error)           { return m.chainID, nil }
func (m *mockSource) FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RawLogRecord, error) {
	m.fetches++
	return m.logs, nil
}

type mockArchive struct {
	stored  []domain.SnapshotRecord
	pingErr error
}

func (m *mockArchive) StoreSnapshot(ctx context.Context, record domain.SnapshotRecord) error {
	m.stored = append(m.stored, record)
	return nil
}

func (m *mockArchive) LatestCommitment(ctx context.Context, key domain.SnapshotKey) (string, bool, error) {
	for i := len(m.stored) - 1; i >= 0; i-- {
		if m.stored[i].Key() == key {
			return m.stored[i].Commitment, true, nil
		}
	}
	return "", false, nil
}

func (m *mockArchive) QuerySnapshots(ctx context.Context, filter SnapshotQueryFilter) ([]domain.SnapshotRecord, error) {
	return m.stored, nil
}

func (m *mockArchive) Ping(ctx context.Context) error { return m.pingErr }

type mockPublisher struct {
	published []domain.SnapshotRecord
	err       error
}

func (m *mockPublisher) PublishCommitment(ctx context.Context, record domain.SnapshotRecord) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, record)
	return nil
}

type mockObserver struct {
	tips        []uint64
	snapshots   []domain.SnapshotRecord
	drifts      []bool
	publishErrs int
}

func (m *mockObserver) OnTip(tip uint64) { m.tips = append(m.tips, tip) }
func (m *mockObserver) OnSnapshot(record domain.SnapshotRecord, drift bool) {
	m.snapshots = append(m.snapshots, record)
	m.drifts = append(m.drifts, drift)
}
func (m *mockObserver) OnPublishError(err error) { m.publishErrs++ }

func TestMonitor_RunOnce(t *testing.T) {
	source := &mockSource{
		tip:     1000,
		chainID: 1,
		logs: []domain.RawLogRecord{
			{BlockNumber: 950, TxHash: common.HexToHash("0xaa"), LogIndex: 0, Topics: []common.Hash{}},
		},
	}
	archive := &mockArchive{}
	publisher := &mockPublisher{}
	observer := &mockObserver{}

	monitor, err := NewMonitor(source, archive, publisher, observer, MonitorConfig{
		Address: "0x1111111111111111111111111111111111111111",
		Blocks:  100,
		MaxLogs: 10,
	})
	if err != nil {
		t.Fatalf("monitor construction failed: %v", err)
	}

	record, drift, err := monitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if drift {
		t.Error("first run must not report drift")
	}
	if record.ChainID != 1 || record.FromBlock != 901 || record.ToBlock != 1000 {
		t.Errorf("unexpected record window: %+v", record)
	}
	if record.LogCount != 1 || record.Commitment == "" {
		t.Errorf("unexpected record counts: %+v", record)
	}
	if len(archive.stored) != 1 {
		t.Fatalf("expected 1 archived record, got %d", len(archive.stored))
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published record, got %d", len(publisher.published))
	}
	if len(observer.tips) != 1 || observer.tips[0] != 1000 {
		t.Errorf("expected tip observation 1000, got %v", observer.tips)
	}
}

func TestMonitor_DetectsDrift(t *testing.T) {
	source := &mockSource{tip: 1000, chainID: 1}
	archive := &mockArchive{}
	observer := &mockObserver{}

	monitor, err := NewMonitor(source, archive, nil, observer, MonitorConfig{
		Address: "0x1111111111111111111111111111111111111111",
		Blocks:  100,
	})
	if err != nil {
		t.Fatalf("monitor construction failed: %v", err)
	}

	if _, drift, err := monitor.RunOnce(context.Background()); err != nil || drift {
		t.Fatalf("first run: drift=%v err=%v", drift, err)
	}

	// Same window, different log set: the commitment changes.
	source.logs = []domain.RawLogRecord{
		{BlockNumber: 950, TxHash: common.HexToHash("0xbb"), LogIndex: 0, Topics: []common.Hash{}},
	}
	_, drift, err := monitor.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !drift {
		t.Error("expected drift for changed log set over identical parameters")
	}
	if len(observer.drifts) != 2 || observer.drifts[0] || !observer.drifts[1] {
		t.Errorf("unexpected drift observations: %v", observer.drifts)
	}
}

func TestMonitor_PublishErrorDoesNotFailCycle(t *testing.T) {
	source := &mockSource{tip: 1000, chainID: 1}
	archive := &mockArchive{}
	publisher := &mockPublisher{err: errors.New("broker down")}
	observer := &mockObserver{}

	monitor, err := NewMonitor(source, archive, publisher, observer, MonitorConfig{
		Address: "0x1111111111111111111111111111111111111111",
		Blocks:  100,
	})
	if err != nil {
		t.Fatalf("monitor construction failed: %v", err)
	}

	if _, _, err := monitor.RunOnce(context.Background()); err != nil {
		t.Fatalf("cycle must survive a publish failure, got %v", err)
	}
	if observer.publishErrs != 1 {
		t.Errorf("expected 1 publish error observation, got %d", observer.publishErrs)
	}
	if len(archive.stored) != 1 {
		t.Errorf("expected archived record despite publish failure, got %d", len(archive.stored))
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	source := &mockSource{tip: 1000, chainID: 1}
	monitor, err := NewMonitor(source, &mockArchive{}, nil, nil, MonitorConfig{
		Address:      "0x1111111111111111111111111111111111111111",
		Blocks:       100,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("monitor construction failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}
	if source.fetches == 0 {
		t.Error("expected at least one fetch before cancel")
	}
}

func TestNewMonitor_Validation(t *testing.T) {
	if _, err := NewMonitor(nil, &mockArchive{}, nil, nil, MonitorConfig{Blocks: 1}); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := NewMonitor(&mockSource{}, &mockArchive{}, nil, nil, MonitorConfig{}); !errors.Is(err, ErrInvalidBlockWindow) {
		t.Errorf("expected ErrInvalidBlockWindow, got %v", err)
	}
}
