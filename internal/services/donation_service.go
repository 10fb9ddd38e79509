package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/kafka"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/lifecycle"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

type DonateRequest struct {
	CampaignID    string `json:"campaign_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	// TransactionID is the client's idempotency key. Retries must reuse it.
	TransactionID string `json:"transaction_id"`
	Anonymous     bool   `json:"anonymous"`
	Message       string `json:"message"`
}

type DonationService interface {
	Donate(ctx context.Context, actor models.Actor, req DonateRequest) (*models.Donation, error)
	ListByCampaign(ctx context.Context, campaignID string, viewer models.Actor) ([]models.Donation, error)
	ListByDonor(ctx context.Context, donorID string) ([]models.Donation, error)
}

type donationService struct {
	campaigns     repository.CampaignRepository
	ledger        *ledger.Ledger
	aggregates    AggregateUpdater
	redisClient   redis.RedisClient
	kafkaProducer kafka.KafkaProducer
	settings      Settings
}

func NewDonationService(
	campaigns repository.CampaignRepository,
	l *ledger.Ledger,
	aggregates AggregateUpdater,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
	settings Settings,
) *donationService {
	return &donationService{
		campaigns:     campaigns,
		ledger:        l,
		aggregates:    aggregates,
		redisClient:   redisClient,
		kafkaProducer: kafkaProducer,
		settings:      settings.withDefaults(),
	}
}

// Donate records a donation and then applies it to the campaign total.
//
// The ledger append always comes first. If the aggregate update then fails
// the donation is kept, the returned donation is non-nil and the error is a
// *errors.PartialFailureError; a reconcile request is queued.
func (s *donationService) Donate(ctx context.Context, actor models.Actor, req DonateRequest) (d *models.Donation, err error) {
	ctx, span := tracer.Start(ctx, "Donate")
	span.SetAttributes(
		attribute.String("campaign_id", req.CampaignID),
		attribute.String("donor_id", actor.UID),
		attribute.Int64("amount", req.Amount),
	)
	defer func() { observability.EndSpan(span, err) }()

	req.CampaignID = strings.TrimSpace(req.CampaignID)
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	switch {
	case actor.UID == "":
		return nil, pkgerrors.ErrUnauthorized
	case req.CampaignID == "":
		return nil, pkgerrors.Invalid("campaign_id", "required")
	case req.Amount <= 0:
		return nil, pkgerrors.ErrInvalidAmount
	case req.Amount < models.MinDonationAmount:
		return nil, pkgerrors.ErrAmountBelowMinimum
	}

	if req.TransactionID != "" {
		prior, err := s.replay(ctx, actor, req)
		if err != nil || prior != nil {
			return prior, err
		}

		lockKey := redis.DonationLockKey(req.TransactionID)
		ok, err := s.redisClient.SetNX(ctx, lockKey, actor.UID, s.settings.IdempotencyTTL)
		if err != nil {
			slog.Error("failed to acquire donation lock", "transaction_id", req.TransactionID, "error", err)
			return nil, fmt.Errorf("acquire donation lock: %w", err)
		}
		if !ok {
			slog.Warn("donation already in flight", "transaction_id", req.TransactionID, "donor_id", actor.UID)
			return nil, pkgerrors.ErrRequestAlreadyProcessed
		}
		defer func() {
			if err := s.redisClient.Del(context.WithoutCancel(ctx), lockKey); err != nil {
				slog.Error("failed to release donation lock", "transaction_id", req.TransactionID, "error", err)
			}
		}()

		// Another request may have recorded the key and released the lock
		// between the lookup above and SETNX.
		prior, err = s.replay(ctx, actor, req)
		if err != nil || prior != nil {
			return prior, err
		}
	}

	campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		slog.Error("campaign lookup failed", "campaign_id", req.CampaignID, "error", err)
		return nil, err
	}
	if !lifecycle.CanAcceptDonation(*campaign, s.settings.Now()) {
		slog.Warn("campaign not accepting donations", "campaign_id", campaign.ID, "status", campaign.Status,
			"current_amount", campaign.CurrentAmount, "goal_amount", campaign.GoalAmount)
		return nil, pkgerrors.ErrCampaignNotActive
	}

	d, err = s.ledger.Append(ctx, models.Donation{
		DonorID:       actor.UID,
		DonorName:     actor.DisplayName,
		CampaignID:    campaign.ID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
		Anonymous:     req.Anonymous,
		Message:       req.Message,
		CreatedAt:     s.settings.Now(),
	})
	var dup *pkgerrors.DuplicateTransactionError
	if stderrors.As(err, &dup) {
		// The store's uniqueness check caught a race the lock missed, e.g.
		// with Redis down. The first writer's donation is the answer.
		prior, rerr := s.replay(ctx, actor, req)
		if rerr != nil {
			return nil, rerr
		}
		if prior != nil {
			return prior, nil
		}
	}
	if err != nil {
		return nil, err
	}
	observability.DonationsRecorded.Inc()
	observability.DonatedAmount.Add(float64(d.Amount))
	span.SetAttributes(attribute.String("donation_id", d.ID))

	publish(ctx, s.kafkaProducer, s.settings.DonationsTopic, d.CampaignID, kafka.DonationEvent{
		EventType:     kafka.EventDonationRecorded,
		DonationID:    d.ID,
		CampaignID:    d.CampaignID,
		DonorID:       d.DonorID,
		Amount:        d.Amount,
		TransactionID: d.TransactionID,
		CreatedAt:     d.CreatedAt,
	})

	if _, aerr := s.aggregates.ApplyDonation(ctx, d.CampaignID, d.Amount); aerr != nil {
		observability.PartialFailures.Inc()
		slog.Error("donation recorded but campaign aggregate not updated",
			"campaign_id", d.CampaignID, "donation_id", d.ID, "amount", d.Amount, "error", aerr)
		publish(ctx, s.kafkaProducer, s.settings.ReconcileTopic, d.CampaignID, kafka.ReconcileRequest{
			EventType:   kafka.EventReconcileRequest,
			CampaignID:  d.CampaignID,
			DonationID:  d.ID,
			Amount:      d.Amount,
			Reason:      aerr.Error(),
			RequestedAt: s.settings.Now(),
		})
		return d, &pkgerrors.PartialFailureError{
			CampaignID: d.CampaignID,
			DonationID: d.ID,
			Amount:     d.Amount,
			Err:        aerr,
		}
	}

	slog.Info("donation completed", "donation_id", d.ID, "campaign_id", d.CampaignID, "donor_id", d.DonorID, "amount", d.Amount)
	return d, nil
}

// replay returns the donation already recorded under req.TransactionID, if
// any. A key reused by another donor or for another campaign is a conflict.
func (s *donationService) replay(ctx context.Context, actor models.Actor, req DonateRequest) (*models.Donation, error) {
	prior, err := s.ledger.FindByTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}
	if prior.DonorID != actor.UID || prior.CampaignID != req.CampaignID || prior.Amount != req.Amount {
		slog.Warn("transaction id reused for a different donation", "transaction_id", req.TransactionID, "donation_id", prior.ID)
		return nil, pkgerrors.ErrRequestAlreadyProcessed
	}
	slog.Info("donation replayed from ledger", "transaction_id", req.TransactionID, "donation_id", prior.ID)
	return prior, nil
}

// ListByCampaign returns a campaign's donations newest first, with anonymous
// donors hidden from everyone but themselves. Donations to a campaign the
// viewer may not see are reported as not found.
func (s *donationService) ListByCampaign(ctx context.Context, campaignID string, viewer models.Actor) ([]models.Donation, error) {
	ctx, span := tracer.Start(ctx, "ListCampaignDonations")
	defer span.End()

	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.VisibleTo(viewer) {
		return nil, pkgerrors.NotFound("campaign", campaignID)
	}
	donations, err := s.ledger.ByCampaign(ctx, campaignID)
	if err != nil {
		slog.Error("failed to list campaign donations", "campaign_id", campaignID, "error", err)
		return nil, err
	}
	ledger.SortNewestFirst(donations)
	for i := range donations {
		donations[i] = donations[i].Disclosed(viewer.UID)
	}
	return donations, nil
}

func (s *donationService) ListByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	ctx, span := tracer.Start(ctx, "ListDonorDonations")
	defer span.End()

	donations, err := s.ledger.ByDonor(ctx, donorID)
	if err != nil {
		slog.Error("failed to list donor donations", "donor_id", donorID, "error", err)
		return nil, err
	}
	ledger.SortNewestFirst(donations)
	slog.Info("donation history retrieved", "donor_id", donorID, "count", len(donations))
	return donations, nil
}
