package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	"github.com/honeynil/CrowdfundServiceTochka/internal/stats"
)

type DonorDashboard struct {
	stats.DonorStats
	Threads int `json:"threads"`
}

type DashboardService interface {
	Donor(ctx context.Context, actor models.Actor) (*DonorDashboard, error)
	Charity(ctx context.Context, charityID string) (*stats.CharitySummary, error)
	Admin(ctx context.Context) (*stats.AdminSummary, error)
}

type dashboardService struct {
	campaigns repository.CampaignRepository
	ledger    *ledger.Ledger
	messages  repository.MessageRepository
	settings  Settings
}

func NewDashboardService(campaigns repository.CampaignRepository, l *ledger.Ledger, messages repository.MessageRepository, settings Settings) *dashboardService {
	return &dashboardService{
		campaigns: campaigns,
		ledger:    l,
		messages:  messages,
		settings:  settings.withDefaults(),
	}
}

func (s *dashboardService) Donor(ctx context.Context, actor models.Actor) (*DonorDashboard, error) {
	ctx, span := tracer.Start(ctx, "DonorDashboard")
	defer span.End()

	donations, err := s.ledger.ByDonor(ctx, actor.UID)
	if err != nil {
		return nil, err
	}
	threads, err := s.messages.CountThreads(ctx, actor.UID)
	if err != nil {
		slog.Error("failed to count threads", "user_id", actor.UID, "error", err)
		return nil, fmt.Errorf("count threads: %w", err)
	}
	return &DonorDashboard{
		DonorStats: stats.UserDonationStats(actor.UID, donations, s.settings.Now()),
		Threads:    threads,
	}, nil
}

func (s *dashboardService) Charity(ctx context.Context, charityID string) (*stats.CharitySummary, error) {
	ctx, span := tracer.Start(ctx, "CharityDashboard")
	defer span.End()

	campaigns, err := s.campaigns.List(ctx, models.CampaignFilter{CharityID: charityID})
	if err != nil {
		return nil, fmt.Errorf("list charity campaigns: %w", err)
	}
	donations, err := s.ledger.All(ctx)
	if err != nil {
		return nil, err
	}
	summary := stats.Charity(charityID, campaigns, donations, s.settings.Now())
	return &summary, nil
}

func (s *dashboardService) Admin(ctx context.Context) (*stats.AdminSummary, error) {
	ctx, span := tracer.Start(ctx, "AdminDashboard")
	defer span.End()

	campaigns, err := s.campaigns.List(ctx, models.CampaignFilter{})
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	donations, err := s.ledger.All(ctx)
	if err != nil {
		return nil, err
	}
	summary := stats.Admin(campaigns, donations, s.settings.Now())
	return &summary, nil
}
