package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgesnap/internal/application"
	"bridgesnap/internal/config"
	"bridgesnap/internal/infrastructure/ethrpc"
	"bridgesnap/internal/infrastructure/kafka"
	"bridgesnap/internal/infrastructure/logging"
	"bridgesnap/internal/infrastructure/mysql"
	"bridgesnap/internal/infrastructure/telemetry"
	"bridgesnap/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/bridgesnapd.log"
	}
	if _, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       logFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}); err != nil {
		slog.Error("logger init error", "err", err)
	}

	if cfg.RPCURL == "" {
		slog.Error("RPC_URL is required")
		os.Exit(1)
	}
	if cfg.ContractAddress == "" {
		slog.Error("CONTRACT_ADDRESS is required")
		os.Exit(1)
	}

	baseRepo, err := mysql.NewRepository(cfg.DBDSN)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	var archive application.SnapshotArchive = baseRepo
	if cachedRepo, err := mysql.NewCachedRepository(baseRepo, mysql.CacheConfig{
		Addr: cfg.RedisAddr,
		TTL:  time.Hour,
	}); err != nil {
		slog.Warn("redis cache disabled", "err", err)
	} else {
		archive = cachedRepo
	}

	shutdownTracing, err := telemetry.InitTracer(context.Background(), "bridgesnapd", cfg.OtelEndpoint)
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

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:     cfg.RPCURL,
		Address: cfg.ContractAddress,
		Topic0:  cfg.Topic0,
	})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}
	checksummed, _ := ethrpc.NormalizeAddress(cfg.ContractAddress)

	var publisher application.CommitmentPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			slog.Error("kafka error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	metrics := httpapi.NewMetrics()
	httpServer, err := httpapi.NewServer(cfg, archive, rpcClient, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	monitor, err := application.NewMonitor(rpcClient, archive, publisher, metrics, application.MonitorConfig{
		Address:      checksummed,
		Topic0:       cfg.Topic0,
		Blocks:       cfg.Blocks,
		MaxLogs:      cfg.MaxLogs,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		slog.Error("monitor error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	slog.Info("bridge snapshot monitor started",
		"rpc", cfg.RPCURL,
		"bridge", checksummed,
		"blocks", cfg.Blocks,
		"max_logs", cfg.MaxLogs,
		"poll", cfg.PollInterval,
	)

	for {
		err := monitor.Run(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		metrics.IncCycleErr()
		slog.Error("monitor cycle failed, retrying", "err", err, "after", cfg.PollInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.PollInterval):
		}
	}
}
