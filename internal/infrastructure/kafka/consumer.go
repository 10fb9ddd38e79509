package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/segmentio/kafka-go"
)

// Reconciler rebuilds one campaign aggregate from the ledger.
type Reconciler interface {
	Reconcile(ctx context.Context, campaignID string) (*models.Campaign, error)
}

type Consumer struct {
	reader     *kafka.Reader
	reconciler Reconciler
}

func NewConsumer(brokers []string, topic, groupID string, reconciler Reconciler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		reconciler: reconciler,
	}
}

// Consume processes reconcile requests until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) {
	topic := c.reader.Config().Topic
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("Kafka consumer stopped", "topic", topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))
		if err := c.handleMessage(ctx, msg); err != nil {
			slog.Error("failed to handle Kafka message", "topic", msg.Topic, "key", string(msg.Key), "error", err)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var req ReconcileRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("unmarshal reconcile request: %w", err)
	}
	if req.EventType != EventReconcileRequest {
		slog.Warn("skipping unknown event", "event_type", req.EventType)
		return nil
	}
	if req.CampaignID == "" {
		return fmt.Errorf("reconcile request without campaign_id")
	}

	campaign, err := c.reconciler.Reconcile(ctx, req.CampaignID)
	if err != nil {
		return fmt.Errorf("reconcile campaign %s: %w", req.CampaignID, err)
	}
	slog.Info("campaign reconciled", "campaign_id", campaign.ID, "current_amount", campaign.CurrentAmount, "donor_count", campaign.DonorCount, "donation_id", req.DonationID)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
