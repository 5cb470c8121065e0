package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	RPCURL           string
	ContractAddress  string
	Topic0           string
	Blocks           uint64
	MaxLogs          uint64
	SnapshotDBPath   string
	DBDSN            string
	RedisAddr        string
	HTTPAddr         string
	OtelEndpoint     string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	PollInterval     time.Duration
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL, _ := source.Lookup("RPC_URL")
	rpcURL = strings.TrimSpace(rpcURL)

	blocks, err := parseUintEnv(source, "BRIDGE_SNAPSHOT_BLOCKS", 2000)
	if err != nil {
		return Config{}, err
	}
	if blocks == 0 {
		return Config{}, errors.New("BRIDGE_SNAPSHOT_BLOCKS must be > 0")
	}
	maxLogs, err := parseUintEnv(source, "BRIDGE_SNAPSHOT_MAX_LOGS", 5000)
	if err != nil {
		return Config{}, err
	}

	contractAddress, _ := source.Lookup("CONTRACT_ADDRESS")
	topic0, _ := source.Lookup("TOPIC0")

	snapshotDBPath, _ := source.Lookup("SNAPSHOT_DB_PATH")
	snapshotDBPath = strings.TrimSpace(snapshotDBPath)

	dbDSN, _ := source.Lookup("DB_DSN")
	if strings.TrimSpace(dbDSN) == "" {
		dbDSN = "root:@tcp(127.0.0.1:3306)/bridgesnap?parseTime=true&multiStatements=true"
	}

	redisAddr := ""
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}

	httpAddr := ":8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	var kafkaBrokers []string
	if raw, ok := source.Lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(raw) != "" {
		for _, item := range strings.Split(raw, ",") {
			if broker := strings.TrimSpace(item); broker != "" {
				kafkaBrokers = append(kafkaBrokers, broker)
			}
		}
	}
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "bridgesnap-commitments"
	}

	pollInterval := 30 * time.Second
	if raw, ok := source.Lookup("POLL_INTERVAL"); ok && raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		pollInterval = duration
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSizeMB, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 0)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 0)
	if err != nil {
		return Config{}, err
	}

	return Config{
		RPCURL:           rpcURL,
		ContractAddress:  contractAddress,
		Topic0:           topic0,
		Blocks:           blocks,
		MaxLogs:          maxLogs,
		SnapshotDBPath:   snapshotDBPath,
		DBDSN:            dbDSN,
		RedisAddr:        redisAddr,
		HTTPAddr:         httpAddr,
		OtelEndpoint:     otelEndpoint,
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: kafkaTopicPrefix,
		PollInterval:     pollInterval,
		LogLevel:         logLevel,
		LogFile:          logFile,
		LogMaxSizeMB:     logMaxSizeMB,
		LogMaxBackups:    logMaxBackups,
	}, nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
