package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/lifecycle"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// CampaignView is a campaign with its derived state at read time.
type CampaignView struct {
	models.Campaign
	State        lifecycle.State `json:"state"`
	UniqueDonors int             `json:"unique_donors"`
}

type CreateCampaignInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url"`
	GoalAmount  int64     `json:"goal_amount"`
	EndDate     time.Time `json:"end_date"`
}

// AggregateUpdater applies ledger entries to the cached campaign counters.
type AggregateUpdater interface {
	ApplyDonation(ctx context.Context, campaignID string, amount int64) (*models.Campaign, error)
	Reconcile(ctx context.Context, campaignID string) (*models.Campaign, error)
}

type CampaignService interface {
	AggregateUpdater
	Create(ctx context.Context, actor models.Actor, in CreateCampaignInput) (*models.Campaign, error)
	Get(ctx context.Context, id string) (*CampaignView, error)
	ListPublic(ctx context.Context) ([]CampaignView, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]CampaignView, error)
	Update(ctx context.Context, actor models.Actor, id string, patch models.CampaignPatch) (*models.Campaign, error)
	Approve(ctx context.Context, id string) (*models.Campaign, error)
	Reject(ctx context.Context, id string) (*models.Campaign, error)
	Delete(ctx context.Context, id string) error
}

type campaignService struct {
	campaigns   repository.CampaignRepository
	ledger      *ledger.Ledger
	redisClient redis.RedisClient
	settings    Settings
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	l *ledger.Ledger,
	redisClient redis.RedisClient,
	settings Settings,
) *campaignService {
	return &campaignService{
		campaigns:   campaigns,
		ledger:      l,
		redisClient: redisClient,
		settings:    settings.withDefaults(),
	}
}

func (s *campaignService) Create(ctx context.Context, actor models.Actor, in CreateCampaignInput) (c *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "CreateCampaign")
	defer func() { observability.EndSpan(span, err) }()

	now := s.settings.Now()
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return nil, pkgerrors.Invalid("title", "required")
	case in.GoalAmount < models.MinGoalAmount:
		return nil, pkgerrors.ErrGoalBelowMinimum
	case in.EndDate.IsZero():
		return nil, pkgerrors.Invalid("end_date", "required")
	case lifecycle.StartOfDay(now).After(lifecycle.EndOfDay(in.EndDate, now.Location())):
		return nil, pkgerrors.Invalid("end_date", "must not be in the past")
	}

	name := actor.DisplayName
	if name == "" {
		name = actor.Email
	}
	c = &models.Campaign{
		ID:          uuid.NewString(),
		CharityID:   actor.UID,
		CharityName: name,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Status:      models.CampaignPending,
		GoalAmount:  in.GoalAmount,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.campaigns.Create(ctx, c); err != nil {
		slog.Error("failed to create campaign", "charity_id", actor.UID, "error", err)
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	slog.Info("campaign created", "campaign_id", c.ID, "charity_id", c.CharityID, "goal_amount", c.GoalAmount)
	return c, nil
}

func (s *campaignService) Get(ctx context.Context, id string) (view *CampaignView, err error) {
	ctx, span := tracer.Start(ctx, "GetCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer func() { observability.EndSpan(span, err) }()

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	donors, err := s.ledger.UniqueDonorCount(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*c, donors)
	return &v, nil
}

// load serves a campaign from the Redis cache, falling back to the store.
func (s *campaignService) load(ctx context.Context, id string) (*models.Campaign, error) {
	key := redis.CampaignKey(id)
	cached, err := s.redisClient.Get(ctx, key)
	if err == nil {
		var c models.Campaign
		uerr := json.Unmarshal([]byte(cached), &c)
		if uerr == nil {
			return &c, nil
		}
		slog.Error("failed to unmarshal cached campaign", "campaign_id", id, "error", uerr)
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to get campaign from Redis", "campaign_id", id, "error", err)
	}

	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(c); err == nil {
		if err := s.redisClient.Set(ctx, key, string(b), s.settings.CacheTTL); err != nil {
			slog.Error("failed to cache campaign", "campaign_id", id, "error", err)
		}
	}
	return c, nil
}

func (s *campaignService) invalidate(ctx context.Context, id string) {
	if err := s.redisClient.Del(ctx, redis.CampaignKey(id)); err != nil {
		slog.Error("failed to invalidate campaign cache", "campaign_id", id, "error", err)
	}
}

// ListPublic returns approved campaigns only; pending and rejected ones are
// never listed publicly.
func (s *campaignService) ListPublic(ctx context.Context) ([]CampaignView, error) {
	return s.List(ctx, models.CampaignFilter{Status: models.CampaignApproved})
}

func (s *campaignService) List(ctx context.Context, filter models.CampaignFilter) (views []CampaignView, err error) {
	ctx, span := tracer.Start(ctx, "ListCampaigns")
	defer func() { observability.EndSpan(span, err) }()

	campaigns, err := s.campaigns.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	totals, err := s.ledger.TotalsByCampaign(ctx)
	if err != nil {
		return nil, err
	}
	views = make([]CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, s.view(c, totals[c.ID]))
	}
	return views, nil
}

func (s *campaignService) view(c models.Campaign, donors int) CampaignView {
	return CampaignView{
		Campaign:     c,
		State:        lifecycle.Evaluate(c, s.settings.Now()),
		UniqueDonors: donors,
	}
}

// Update edits descriptive fields. Counters are owned by the ledger and are
// dropped from the patch.
func (s *campaignService) Update(ctx context.Context, actor models.Actor, id string, patch models.CampaignPatch) (c *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "UpdateCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer func() { observability.EndSpan(span, err) }()

	patch.CurrentAmount = nil
	patch.DonorCount = nil
	if patch.Empty() {
		return nil, pkgerrors.ErrEmptyPatch
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, pkgerrors.Invalid("title", "required")
	}

	existing, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.CharityID != actor.UID && !actor.Is(models.RoleAdmin) {
		slog.Warn("campaign update denied", "campaign_id", id, "uid", actor.UID)
		return nil, pkgerrors.ErrForbidden
	}

	c, err = s.campaigns.Update(ctx, id, patch)
	if err != nil {
		slog.Error("failed to update campaign", "campaign_id", id, "error", err)
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	s.invalidate(ctx, id)
	slog.Info("campaign updated", "campaign_id", id, "uid", actor.UID)
	return c, nil
}

func (s *campaignService) Approve(ctx context.Context, id string) (*models.Campaign, error) {
	return s.review(ctx, id, models.CampaignApproved)
}

func (s *campaignService) Reject(ctx context.Context, id string) (*models.Campaign, error) {
	return s.review(ctx, id, models.CampaignRejected)
}

func (s *campaignService) review(ctx context.Context, id string, next models.CampaignStatus) (c *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "ReviewCampaign")
	span.SetAttributes(attribute.String("campaign_id", id), attribute.String("status", string(next)))
	defer func() { observability.EndSpan(span, err) }()

	existing, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Status.CanTransition(next) {
		slog.Warn("invalid status transition", "campaign_id", id, "from", existing.Status, "to", next)
		return nil, pkgerrors.ErrInvalidStatusTransition
	}
	c, err = s.campaigns.UpdateStatus(ctx, id, next)
	if err != nil {
		slog.Error("failed to update campaign status", "campaign_id", id, "status", next, "error", err)
		return nil, fmt.Errorf("update campaign status: %w", err)
	}
	s.invalidate(ctx, id)
	slog.Info("campaign reviewed", "campaign_id", id, "status", next)
	return c, nil
}

// Delete hard-deletes a campaign. Its donations stay in the ledger.
func (s *campaignService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "DeleteCampaign")
	span.SetAttributes(attribute.String("campaign_id", id))
	defer func() { observability.EndSpan(span, err) }()

	if err = s.campaigns.Delete(ctx, id); err != nil {
		slog.Error("failed to delete campaign", "campaign_id", id, "error", err)
		return err
	}
	s.invalidate(ctx, id)
	slog.Info("campaign deleted", "campaign_id", id)
	return nil
}

// ApplyDonation adds amount to the campaign total with an atomic store
// increment. It does not re-check eligibility: that is decided when the
// donation is authorized, and an over-funded result is legal.
func (s *campaignService) ApplyDonation(ctx context.Context, campaignID string, amount int64) (c *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "ApplyDonation")
	span.SetAttributes(attribute.String("campaign_id", campaignID), attribute.Int64("amount", amount))
	defer func() { observability.EndSpan(span, err) }()

	if amount <= 0 {
		return nil, pkgerrors.ErrInvalidAmount
	}
	c, err = s.campaigns.IncrementProgress(ctx, campaignID, amount)
	if err != nil {
		slog.Error("failed to increment campaign progress", "campaign_id", campaignID, "amount", amount, "error", err)
		return nil, fmt.Errorf("increment progress: %w", err)
	}
	s.invalidate(ctx, campaignID)
	slog.Info("campaign progress incremented", "campaign_id", campaignID, "amount", amount, "current_amount", c.CurrentAmount, "donor_count", c.DonorCount)
	return c, nil
}

// Reconcile rebuilds the campaign counters from the ledger. The fold runs
// inside the store's write, so donations landing meanwhile are not lost.
func (s *campaignService) Reconcile(ctx context.Context, campaignID string) (c *models.Campaign, err error) {
	ctx, span := tracer.Start(ctx, "ReconcileCampaign")
	span.SetAttributes(attribute.String("campaign_id", campaignID))
	defer func() { observability.EndSpan(span, err) }()

	before, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	c, err = s.campaigns.Recount(ctx, campaignID)
	if err != nil {
		slog.Error("failed to write reconciled totals", "campaign_id", campaignID, "error", err)
		return nil, fmt.Errorf("reconcile campaign: %w", err)
	}
	total, donors := c.CurrentAmount, c.DonorCount
	s.invalidate(ctx, campaignID)

	drift := "none"
	if before.CurrentAmount != total || before.DonorCount != donors {
		drift = "corrected"
		slog.Warn("campaign aggregate drift corrected", "campaign_id", campaignID,
			"stored_amount", before.CurrentAmount, "ledger_amount", total,
			"stored_donors", before.DonorCount, "ledger_donors", donors)
	}
	observability.Reconciliations.WithLabelValues(drift).Inc()
	slog.Info("campaign reconciled", "campaign_id", campaignID, "current_amount", total, "donor_count", donors)
	return c, nil
}
