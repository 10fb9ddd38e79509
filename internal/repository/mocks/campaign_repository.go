package mocks

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockCampaignRepository struct {
	mock.Mock
}

func NewMockCampaignRepository() *MockCampaignRepository {
	return &MockCampaignRepository{}
}

func campaignResult(args mock.Arguments) (*models.Campaign, error) {
	c, _ := args.Get(0).(*models.Campaign)
	return c, args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	args := m.Called(ctx, filter)
	campaigns, _ := args.Get(0).([]models.Campaign)
	return campaigns, args.Error(1)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	return campaignResult(m.Called(ctx, id))
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	return m.Called(ctx, campaign).Error(0)
}

func (m *MockCampaignRepository) Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error) {
	return campaignResult(m.Called(ctx, id, patch))
}

func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error) {
	return campaignResult(m.Called(ctx, id, status))
}

func (m *MockCampaignRepository) IncrementProgress(ctx context.Context, id string, amount int64) (*models.Campaign, error) {
	return campaignResult(m.Called(ctx, id, amount))
}

func (m *MockCampaignRepository) Recount(ctx context.Context, id string) (*models.Campaign, error) {
	return campaignResult(m.Called(ctx, id))
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
