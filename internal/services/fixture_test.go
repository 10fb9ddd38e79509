package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	kafkamocks "github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/kafka/mocks"
	"github.com/honeynil/CrowdfundServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/CrowdfundServiceTochka/internal/ledger"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository/memory"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

type fixture struct {
	campaigns *memory.CampaignRepository
	store     *memory.DonationRepository
	ledger    *ledger.Ledger
	producer  *kafkamocks.MockKafkaProducer
	settings  Settings
	campaign  *campaignService
	donation  *donationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewDonationRepository()
	f := &fixture{
		campaigns: memory.NewCampaignRepository(store),
		store:     store,
		producer:  kafkamocks.NewMockKafkaProducer(),
		settings:  Settings{Now: func() time.Time { return testNow }},
	}
	seq := 0
	f.ledger = ledger.New(f.store,
		ledger.WithClock(f.settings.Now),
		ledger.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("d-%d", seq)
		}),
	)
	f.producer.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.campaign = NewCampaignService(f.campaigns, f.ledger, redis.Noop{}, f.settings)
	f.donation = NewDonationService(f.campaigns, f.ledger, f.campaign, redis.Noop{}, f.producer, f.settings)
	return f
}

func (f *fixture) seedCampaign(t *testing.T, id string, status models.CampaignStatus, goal, current int64, end time.Time) {
	t.Helper()
	require.NoError(t, f.campaigns.Create(context.Background(), &models.Campaign{
		ID:            id,
		CharityID:     "ch-1",
		CharityName:   "Clean Water",
		Title:         "Wells for " + id,
		Status:        status,
		GoalAmount:    goal,
		CurrentAmount: current,
		EndDate:       end,
		CreatedAt:     testNow.AddDate(0, 0, -10),
	}))
}

func donor(uid string) models.Actor {
	return models.Actor{UID: uid, DisplayName: "Donor " + uid, Role: models.RoleDonor}
}

var (
	charity = models.Actor{UID: "ch-1", DisplayName: "Clean Water", Role: models.RoleCharity}
	admin   = models.Actor{UID: "root", Role: models.RoleAdmin}
)
