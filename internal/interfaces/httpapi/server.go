package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/config"
)

type RPCStatus interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server exposes the daemon's archive and progress over HTTP.
type Server struct {
	cfg       config.Config
	archive   application.SnapshotArchive
	rpc       RPCStatus
	metrics   *Metrics
	buildInfo BuildInfo
}

func NewServer(cfg config.Config, archive application.SnapshotArchive, rpc RPCStatus, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if archive == nil || rpc == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Server{cfg: cfg, archive: archive, rpc: rpc, metrics: metrics, buildInfo: buildInfo}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/snapshots", s.handleSnapshots)
	mux.HandleFunc("/filters", s.handleFilters)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/version", s.handleVersion)
	return mux
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.archive.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "archive not ready")
		return
	}
	if _, err := s.rpc.LatestBlockNumber(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "rpc not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSnapshotFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.archive.QuerySnapshots(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed")
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"contract_address": s.cfg.ContractAddress,
		"topic0":           s.cfg.Topic0,
		"blocks":           s.cfg.Blocks,
		"max_logs":         s.cfg.MaxLogs,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	snap := s.metrics.Snapshot()

	uptime := time.Since(snap.StartTime).Seconds()
	fmt.Fprintf(w, "bridgesnap_uptime_seconds %.0f\n", uptime)
	fmt.Fprintf(w, "bridgesnap_latest_block %d\n", snap.LatestBlock)
	fmt.Fprintf(w, "bridgesnap_snapshots_built_total %d\n", snap.SnapshotsBuilt)
	fmt.Fprintf(w, "bridgesnap_commitment_drift_total %d\n", snap.DriftCount)
	fmt.Fprintf(w, "bridgesnap_last_snapshot_from_block %d\n", snap.LastFromBlock)
	fmt.Fprintf(w, "bridgesnap_last_snapshot_to_block %d\n", snap.LastToBlock)
	fmt.Fprintf(w, "bridgesnap_last_snapshot_log_count %d\n", snap.LastLogCount)
	fmt.Fprintf(w, "bridgesnap_last_snapshot_unique_tx %d\n", snap.LastUniqueTx)
	fmt.Fprintf(w, "bridgesnap_publish_errors_total %d\n", snap.PublishErrors)
	fmt.Fprintf(w, "bridgesnap_cycle_errors_total %d\n", snap.CycleErrors)
	if !snap.LastSnapshotAt.IsZero() {
		fmt.Fprintf(w, "bridgesnap_last_snapshot_timestamp_seconds %d\n", snap.LastSnapshotAt.Unix())
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func parseSnapshotFilter(r *http.Request) (application.SnapshotQueryFilter, error) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			return application.SnapshotQueryFilter{}, errors.New("invalid limit")
		}
		limit = value
	}

	chainID, err := parseUintQuery(r, "chain_id")
	if err != nil {
		return application.SnapshotQueryFilter{}, err
	}
	from, err := parseUintQuery(r, "from_block")
	if err != nil {
		return application.SnapshotQueryFilter{}, err
	}
	to, err := parseUintQuery(r, "to_block")
	if err != nil {
		return application.SnapshotQueryFilter{}, err
	}

	return application.SnapshotQueryFilter{
		ChainID:   chainID,
		Address:   strings.ToLower(r.URL.Query().Get("address")),
		FromBlock: from,
		ToBlock:   to,
		Limit:     limit,
	}, nil
}

func parseUintQuery(r *http.Request, key string) (*uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &value, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
