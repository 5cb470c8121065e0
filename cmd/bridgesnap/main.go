package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/config"
	"bridgesnap/internal/domain"
	"bridgesnap/internal/infrastructure/ethrpc"
	"bridgesnap/internal/infrastructure/kafka"
	"bridgesnap/internal/infrastructure/logging"
	"bridgesnap/internal/infrastructure/sqlite"
	"bridgesnap/internal/infrastructure/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// payload is the document printed to stdout. data.logs together with the
// canonical encoding rules is the surface a downstream verifier recomputes
// the commitment from.
type payload struct {
	Mode           string          `json:"mode"`
	Network        string          `json:"network"`
	ChainID        uint64          `json:"chainId"`
	BridgeAddress  string          `json:"bridgeAddress"`
	GeneratedAtUTC string          `json:"generatedAtUtc"`
	ElapsedSec     float64         `json:"elapsedSec"`
	Data           domain.Snapshot `json:"data"`
}

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	var (
		rpcURL      = flag.String("rpc", cfg.RPCURL, "RPC URL (default from RPC_URL env)")
		fromBlock   = flag.Int64("from-block", -1, "start block number (default: derived from -blocks)")
		toBlock     = flag.Int64("to-block", -1, "end block number (default: latest block)")
		blocks      = flag.Uint64("blocks", cfg.Blocks, "number of recent blocks to cover if from/to not set")
		topic0      = flag.String("topic0", cfg.Topic0, "optional topic0 (event signature hash) to filter logs")
		maxLogs     = flag.Uint64("max-logs", cfg.MaxLogs, "maximum logs to keep in snapshot (0 = no limit)")
		archivePath = flag.String("archive", cfg.SnapshotDBPath, "sqlite archive path for commitment drift detection (empty = off)")
		pretty      = flag.Bool("pretty", false, "pretty-print JSON instead of compact JSON")
		noHuman     = flag.Bool("no-human", false, "disable human-readable summary (JSON only)")
	)
	flag.Parse()

	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}

	address := flag.Arg(0)
	if address == "" {
		address = cfg.ContractAddress
	}
	if address == "" {
		slog.Error("bridge contract address is required (positional argument or CONTRACT_ADDRESS)")
		os.Exit(1)
	}
	if *rpcURL == "" {
		slog.Error("rpc url is required (set RPC_URL or pass -rpc)")
		os.Exit(1)
	}
	if *blocks == 0 {
		slog.Error("config error", "err", application.ErrInvalidBlockWindow)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "bridgesnap", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	client, err := ethrpc.NewClient(ethrpc.Config{
		URL:     *rpcURL,
		Address: address,
		Topic0:  *topic0,
	})
	if err != nil {
		slog.Error("rpc client error", "err", err)
		os.Exit(1)
	}
	// NewClient already validated the address.
	checksummed, _ := ethrpc.NormalizeAddress(address)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer := otel.Tracer("bridgesnap/cli")
	ctx, span := tracer.Start(ctx, "snapshot.run")
	defer span.End()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		fatal(span, "chain id fetch failed", err)
	}
	tip, err := client.LatestBlockNumber(ctx)
	if err != nil {
		fatal(span, "tip fetch failed", err)
	}
	network := application.NetworkName(chainID)
	slog.Info("connected", "network", network, "chain_id", chainID, "tip", tip)

	req := application.RangeRequest{Blocks: *blocks}
	if *fromBlock >= 0 {
		value := uint64(*fromBlock)
		req.FromBlock = &value
	}
	if *toBlock >= 0 {
		value := uint64(*toBlock)
		req.ToBlock = &value
	}
	from, to, err := application.ResolveRange(req, tip)
	if err != nil {
		fatal(span, "range resolution failed", err)
	}
	span.SetAttributes(
		attribute.Int64("chain.id", int64(chainID)),
		attribute.String("address", checksummed),
		attribute.Int64("block.from", int64(from)),
		attribute.Int64("block.to", int64(to)),
	)

	slog.Info("fetching logs", "address", checksummed, "from", from, "to", to)
	start := time.Now()
	raw, err := client.FetchLogs(ctx, from, to)
	if err != nil {
		fatal(span, "log fetch failed", err)
	}
	slog.Info("rpc returned logs", "count", len(raw), "elapsed", time.Since(start))
	if *maxLogs > 0 && uint64(len(raw)) > *maxLogs {
		slog.Warn("truncating logs for commitment", "received", len(raw), "max_logs", *maxLogs)
	}

	snapshot := application.BuildSnapshot(raw, application.SnapshotParams{
		FromBlock: from,
		ToBlock:   to,
		MaxLogs:   *maxLogs,
		Topic0:    *topic0,
	})
	// elapsedSec covers fetch plus build, like the reference output.
	elapsed := time.Since(start)
	record := domain.SnapshotRecord{
		ChainID:       chainID,
		Address:       checksummed,
		FromBlock:     from,
		ToBlock:       to,
		Topic0:        *topic0,
		MaxLogs:       *maxLogs,
		LogCount:      snapshot.Meta.LogCount,
		UniqueTxCount: snapshot.Meta.UniqueTxCount,
		Commitment:    snapshot.Meta.CommitmentKeccak,
		CreatedAt:     time.Now().UTC(),
	}

	if *archivePath != "" {
		archiveRecord(ctx, *archivePath, record)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publishRecord(ctx, cfg, record)
	}

	if !*noHuman {
		slog.Info("snapshot built",
			"network", network,
			"bridge", checksummed,
			"logs", snapshot.Meta.LogCount,
			"unique_tx", snapshot.Meta.UniqueTxCount,
			"from_effective", snapshot.Meta.FromBlockEffective,
			"to_effective", snapshot.Meta.ToBlockEffective,
			"commitment", snapshot.Meta.CommitmentKeccak,
		)
	}

	doc := payload{
		Mode:           "zk_bridge_events_snapshot",
		Network:        network,
		ChainID:        chainID,
		BridgeAddress:  checksummed,
		GeneratedAtUTC: time.Now().UTC().Format("2006-01-02 15:04:05"),
		ElapsedSec:     elapsedSeconds(elapsed),
		Data:           snapshot,
	}
	encoder := json.NewEncoder(os.Stdout)
	if *pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(doc); err != nil {
		slog.Error("payload encode error", "err", err)
		os.Exit(1)
	}
}

func archiveRecord(ctx context.Context, path string, record domain.SnapshotRecord) {
	repo, err := sqlite.NewRepository(path)
	if err != nil {
		slog.Warn("snapshot archive disabled", "err", err)
		return
	}
	defer repo.Close()

	previous, drift, err := application.ArchiveSnapshot(ctx, repo, record)
	if err != nil {
		slog.Warn("snapshot archive error", "err", err)
		return
	}
	if drift {
		slog.Warn("commitment drift detected for identical parameters",
			"previous", previous,
			"current", record.Commitment,
			"from", record.FromBlock,
			"to", record.ToBlock,
		)
	}
}

func publishRecord(ctx context.Context, cfg config.Config, record domain.SnapshotRecord) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	if err != nil {
		slog.Warn("kafka publish disabled", "err", err)
		return
	}
	defer producer.Close()

	if err := producer.PublishCommitment(ctx, record); err != nil {
		slog.Warn("commitment publish failed", "err", err)
	}
}

// elapsedSeconds reports a duration in seconds, rounded to the millisecond.
func elapsedSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

func fatal(span trace.Span, message string, err error) {
	if errors.Is(err, context.Canceled) {
		os.Exit(130)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
	slog.Error(message, "err", err)
	os.Exit(1)
}
