package repository

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

// DonationRepository is append-only: there is no update or delete. Append
// returns a DuplicateTransactionError when the transaction id is taken.
type DonationRepository interface {
	Append(ctx context.Context, donation *models.Donation) error
	ListByUser(ctx context.Context, userID string) ([]models.Donation, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]models.Donation, error)
	List(ctx context.Context) ([]models.Donation, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error)
}
