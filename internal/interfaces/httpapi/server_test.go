package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/config"
	"bridgesnap/internal/domain"
)

type stubArchive struct {
	records []domain.SnapshotRecord
	filter  application.SnapshotQueryFilter
	pingErr error
}

func (s *stubArchive) StoreSnapshot(ctx context.Context, record domain.SnapshotRecord) error {
	s.records = append(s.records, record)
	return nil
}

func (s *stubArchive) LatestCommitment(ctx context.Context, key domain.SnapshotKey) (string, bool, error) {
	return "", false, nil
}

func (s *stubArchive) QuerySnapshots(ctx context.Context, filter application.SnapshotQueryFilter) ([]domain.SnapshotRecord, error) {
	s.filter = filter
	return s.records, nil
}

func (s *stubArchive) Ping(ctx context.Context) error { return s.pingErr }

type stubRPC struct {
	tip uint64
	err error
}

func (s *stubRPC) LatestBlockNumber(ctx context.Context) (uint64, error) { return s.tip, s.err }

func testServer(t *testing.T, archive *stubArchive, rpc *stubRPC) *Server {
	t.Helper()
	cfg := config.Config{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		Blocks:          2000,
		MaxLogs:         5000,
	}
	server, err := NewServer(cfg, archive, rpc, NewMetrics(), BuildInfo{Version: "test"})
	if err != nil {
		t.Fatalf("server construction failed: %v", err)
	}
	return server
}

func doRequest(t *testing.T, server *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

func TestServer_Health(t *testing.T) {
	server := testServer(t, &stubArchive{}, &stubRPC{tip: 100})
	if resp := doRequest(t, server, "/healthz"); resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}
}

func TestServer_Ready(t *testing.T) {
	archive := &stubArchive{}
	rpc := &stubRPC{tip: 100}
	server := testServer(t, archive, rpc)

	if resp := doRequest(t, server, "/readyz"); resp.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.Code)
	}

	archive.pingErr = errors.New("db down")
	if resp := doRequest(t, server, "/readyz"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for archive failure, got %d", resp.Code)
	}

	archive.pingErr = nil
	rpc.err = errors.New("rpc down")
	if resp := doRequest(t, server, "/readyz"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for rpc failure, got %d", resp.Code)
	}
}

func TestServer_Snapshots(t *testing.T) {
	archive := &stubArchive{
		records: []domain.SnapshotRecord{{
			ChainID:    1,
			Address:    "0x1111111111111111111111111111111111111111",
			FromBlock:  100,
			ToBlock:    200,
			Commitment: "0x" + strings.Repeat("aa", 32),
			CreatedAt:  time.Now().UTC(),
		}},
	}
	server := testServer(t, archive, &stubRPC{tip: 100})

	resp := doRequest(t, server, "/snapshots?chain_id=1&from_block=50&limit=10")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var records []domain.SnapshotRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(records) != 1 || records[0].Commitment != archive.records[0].Commitment {
		t.Errorf("unexpected records: %+v", records)
	}

	if archive.filter.ChainID == nil || *archive.filter.ChainID != 1 {
		t.Errorf("chain filter not forwarded: %+v", archive.filter)
	}
	if archive.filter.FromBlock == nil || *archive.filter.FromBlock != 50 {
		t.Errorf("from_block filter not forwarded: %+v", archive.filter)
	}
	if archive.filter.Limit != 10 {
		t.Errorf("limit not forwarded: %+v", archive.filter)
	}
}

func TestServer_SnapshotsRejectsBadQuery(t *testing.T) {
	server := testServer(t, &stubArchive{}, &stubRPC{tip: 100})
	for _, path := range []string{
		"/snapshots?chain_id=not-a-number",
		"/snapshots?from_block=-1",
		"/snapshots?limit=ten",
	} {
		if resp := doRequest(t, server, path); resp.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, resp.Code)
		}
	}
}

func TestServer_Metrics(t *testing.T) {
	server := testServer(t, &stubArchive{}, &stubRPC{tip: 100})

	metrics := server.MetricsObserver()
	metrics.OnTip(12345)
	metrics.OnSnapshot(domain.SnapshotRecord{
		FromBlock: 100,
		ToBlock:   200,
		LogCount:  7,
		CreatedAt: time.Now().UTC(),
	}, true)
	metrics.OnPublishError(errors.New("broker down"))

	resp := doRequest(t, server, "/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, line := range []string{
		"bridgesnap_latest_block 12345",
		"bridgesnap_snapshots_built_total 1",
		"bridgesnap_commitment_drift_total 1",
		"bridgesnap_last_snapshot_log_count 7",
		"bridgesnap_publish_errors_total 1",
	} {
		if !strings.Contains(body, line) {
			t.Errorf("metrics output missing %q:\n%s", line, body)
		}
	}
}

func TestServer_Filters(t *testing.T) {
	server := testServer(t, &stubArchive{}, &stubRPC{tip: 100})

	resp := doRequest(t, server, "/filters")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload["contract_address"] != "0x1111111111111111111111111111111111111111" {
		t.Errorf("unexpected filters payload: %v", payload)
	}
}
