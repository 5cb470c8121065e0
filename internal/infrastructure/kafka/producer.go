package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bridgesnap/internal/domain"
	"bridgesnap/internal/infrastructure/telemetry"
	"bridgesnap/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Producer publishes snapshot commitments to per-chain topics so downstream
// soundness verifiers can consume them.
type Producer struct {
	writer *kafka.Writer
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "bridgesnap-commitments"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) PublishCommitment(ctx context.Context, record domain.SnapshotRecord) error {
	tracer := otel.Tracer("bridgesnap/kafka")

	traceID, traceIDHex, ok := telemetry.NewTraceID()
	traceCtx := ctx
	if ok {
		if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
			traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
		}
	} else {
		traceIDHex = ""
	}
	traceCtx, span := tracer.Start(traceCtx, "snapshot.publish_commitment", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("chain.id", int64(record.ChainID)),
		attribute.String("address", record.Address),
		attribute.Int64("block.from", int64(record.FromBlock)),
		attribute.Int64("block.to", int64(record.ToBlock)),
		attribute.String("commitment", record.Commitment),
	)

	payload, err := streaming.Encode(streaming.Message{
		Type:          streaming.MessageTypeCommitment,
		ChainID:       record.ChainID,
		TraceID:       traceIDHex,
		Address:       record.Address,
		FromBlock:     record.FromBlock,
		ToBlock:       record.ToBlock,
		Topic0:        record.Topic0,
		MaxLogs:       record.MaxLogs,
		LogCount:      record.LogCount,
		UniqueTxCount: record.UniqueTxCount,
		Commitment:    record.Commitment,
		CreatedAt:     record.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topicForChain(record.ChainID),
		Key:     []byte(record.Address),
		Value:   payload,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Producer) topicForChain(chainID uint64) string {
	return fmt.Sprintf("%s-%d", p.prefix, chainID)
}
