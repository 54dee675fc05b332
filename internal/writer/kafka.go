package writer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/errs"
)

// KafkaSink publishes every generated row to a Kafka topic, keyed by
// transaction id. It is used as a tee next to the file writer.
type KafkaSink struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

func NewKafkaSink(cfg *config.Kafka, log zerolog.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errs.Configurationf("kafka sink requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errs.Configurationf("kafka sink requires a topic")
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		BatchSize:    100,
		BatchTimeout: 1 * time.Second,
		WriteTimeout: writeTimeout,
	}

	log.Debug().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka sink ready")
	return &KafkaSink{writer: w, log: log}, nil
}

func (s *KafkaSink) Write(ctx context.Context, rows []*models.Record) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(rows))
	for _, r := range rows {
		value, err := json.Marshal(jsonRow(r))
		if err != nil {
			return errs.Writerf("marshal kafka payload").WithError(err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.TransactionID),
			Value: value,
			Time:  time.Now(),
		})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return errs.Writerf("publish %d rows to kafka", len(msgs)).WithError(err)
	}
	return nil
}

func (s *KafkaSink) Finalize(context.Context, map[string]any) error {
	if err := s.writer.Close(); err != nil {
		return errs.Writerf("close kafka writer").WithError(err)
	}
	return nil
}
