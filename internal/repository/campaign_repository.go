package repository

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

type CampaignRepository interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error)
	GetByID(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, campaign *models.Campaign) error
	Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error)
	// IncrementProgress adds amount to the stored total and recounts unique
	// donors from the donation ledger, in a single atomic write.
	IncrementProgress(ctx context.Context, id string, amount int64) (*models.Campaign, error)
	// Recount overwrites both counters with values folded from the donation
	// ledger inside the same write, so no increment is lost in between.
	Recount(ctx context.Context, id string) (*models.Campaign, error)
	Delete(ctx context.Context, id string) error
}
