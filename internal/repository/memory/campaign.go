// Package memory keeps every store in process memory. It backs local
// development (STORE_DRIVER=memory) and the service tests.
//
// The campaign store reads the donation store it is built with, so counter
// writes can be derived from the ledger while the campaign lock is held.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type CampaignRepository struct {
	mu        sync.Mutex
	campaigns map[string]models.Campaign
	order     []string
	donations *DonationRepository
	now       func() time.Time
}

func NewCampaignRepository(donations *DonationRepository) *CampaignRepository {
	return &CampaignRepository{
		campaigns: make(map[string]models.Campaign),
		donations: donations,
		now:       time.Now,
	}
}

func (r *CampaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Campaign, 0, len(r.order))
	for _, id := range r.order {
		c := r.campaigns[id]
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.CharityID != "" && c.CharityID != filter.CharityID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, pkgerrors.NotFound("campaign", id)
	}
	return &c, nil
}

func (r *CampaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[campaign.ID]; ok {
		return &pkgerrors.DuplicateIDError{ID: campaign.ID}
	}
	if campaign.CreatedAt.IsZero() {
		campaign.CreatedAt = r.now()
	}
	campaign.UpdatedAt = campaign.CreatedAt
	r.campaigns[campaign.ID] = *campaign
	r.order = append(r.order, campaign.ID)
	return nil
}

func (r *CampaignRepository) Update(ctx context.Context, id string, patch models.CampaignPatch) (*models.Campaign, error) {
	return r.mutate(ctx, id, func(c *models.Campaign) { patch.Apply(c) })
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id string, status models.CampaignStatus) (*models.Campaign, error) {
	return r.mutate(ctx, id, func(c *models.Campaign) { c.Status = status })
}

func (r *CampaignRepository) IncrementProgress(ctx context.Context, id string, amount int64) (*models.Campaign, error) {
	return r.mutate(ctx, id, func(c *models.Campaign) {
		c.CurrentAmount += amount
		_, c.DonorCount = r.donations.totals(id)
	})
}

func (r *CampaignRepository) Recount(ctx context.Context, id string) (*models.Campaign, error) {
	return r.mutate(ctx, id, func(c *models.Campaign) {
		c.CurrentAmount, c.DonorCount = r.donations.totals(id)
	})
}

func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.campaigns[id]; !ok {
		return pkgerrors.NotFound("campaign", id)
	}
	delete(r.campaigns, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *CampaignRepository) mutate(ctx context.Context, id string, fn func(*models.Campaign)) (*models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[id]
	if !ok {
		return nil, pkgerrors.NotFound("campaign", id)
	}
	fn(&c)
	c.UpdatedAt = r.now()
	r.campaigns[id] = c
	return &c, nil
}
