package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/kafka"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("crowdfund-service")

// Settings tunes the services. Zero fields take the defaults below.
type Settings struct {
	DonationsTopic string
	ReconcileTopic string
	CacheTTL       time.Duration
	IdempotencyTTL time.Duration
	Now            func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.DonationsTopic == "" {
		s.DonationsTopic = "donations"
	}
	if s.ReconcileTopic == "" {
		s.ReconcileTopic = "campaign-reconcile"
	}
	if s.CacheTTL == 0 {
		s.CacheTTL = 5 * time.Minute
	}
	if s.IdempotencyTTL == 0 {
		s.IdempotencyTTL = 30 * time.Second
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// publish marshals event and sends it keyed by campaign id. Failures are
// logged, never returned: events are notifications, not the record.
func publish(ctx context.Context, producer kafka.KafkaProducer, topic, key string, event any) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal Kafka event", "topic", topic, "key", key, "error", err)
		return
	}
	if err := producer.Send(ctx, topic, key, eventBytes); err != nil {
		slog.Error("failed to send Kafka event", "topic", topic, "key", key, "error", err)
	}
}
