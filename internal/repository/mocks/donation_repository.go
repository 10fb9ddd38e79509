package mocks

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockDonationRepository struct {
	mock.Mock
}

func NewMockDonationRepository() *MockDonationRepository {
	return &MockDonationRepository{}
}

func donationsResult(args mock.Arguments) ([]models.Donation, error) {
	donations, _ := args.Get(0).([]models.Donation)
	return donations, args.Error(1)
}

func (m *MockDonationRepository) Append(ctx context.Context, donation *models.Donation) error {
	return m.Called(ctx, donation).Error(0)
}

func (m *MockDonationRepository) ListByUser(ctx context.Context, userID string) ([]models.Donation, error) {
	return donationsResult(m.Called(ctx, userID))
}

func (m *MockDonationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.Donation, error) {
	return donationsResult(m.Called(ctx, campaignID))
}

func (m *MockDonationRepository) List(ctx context.Context) ([]models.Donation, error) {
	return donationsResult(m.Called(ctx))
}

func (m *MockDonationRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error) {
	args := m.Called(ctx, transactionID)
	d, _ := args.Get(0).(*models.Donation)
	return d, args.Error(1)
}
