package memory

import (
	"context"
	"sync"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

// DonationRepository returns donations in append order. Like the unique
// index on donations.transaction_id, it holds at most one donation per
// non-empty transaction id.
type DonationRepository struct {
	mu        sync.RWMutex
	donations []models.Donation
	ids       map[string]struct{}
	txs       map[string]int
}

func NewDonationRepository() *DonationRepository {
	return &DonationRepository{
		ids: make(map[string]struct{}),
		txs: make(map[string]int),
	}
}

func (r *DonationRepository) Append(ctx context.Context, donation *models.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[donation.ID]; ok {
		return &pkgerrors.DuplicateIDError{ID: donation.ID}
	}
	if tx := donation.TransactionID; tx != "" {
		if _, ok := r.txs[tx]; ok {
			return &pkgerrors.DuplicateTransactionError{TransactionID: tx}
		}
		r.txs[tx] = len(r.donations)
	}
	r.ids[donation.ID] = struct{}{}
	r.donations = append(r.donations, *donation)
	return nil
}

func (r *DonationRepository) ListByUser(ctx context.Context, userID string) ([]models.Donation, error) {
	return r.filter(ctx, func(d models.Donation) bool { return d.DonorID == userID })
}

func (r *DonationRepository) ListByCampaign(ctx context.Context, campaignID string) ([]models.Donation, error) {
	return r.filter(ctx, func(d models.Donation) bool { return d.CampaignID == campaignID })
}

func (r *DonationRepository) List(ctx context.Context) ([]models.Donation, error) {
	return r.filter(ctx, func(models.Donation) bool { return true })
}

func (r *DonationRepository) GetByTransactionID(ctx context.Context, transactionID string) (*models.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.txs[transactionID]
	if !ok || transactionID == "" {
		return nil, pkgerrors.NotFound("donation", transactionID)
	}
	d := r.donations[i]
	return &d, nil
}

// totals sums campaignID's donations and counts its distinct donors.
func (r *DonationRepository) totals(campaignID string) (amount int64, donors int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, d := range r.donations {
		if d.CampaignID != campaignID {
			continue
		}
		amount += d.Amount
		seen[d.DonorID] = struct{}{}
	}
	return amount, len(seen)
}

func (r *DonationRepository) filter(ctx context.Context, keep func(models.Donation) bool) ([]models.Donation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Donation, 0)
	for _, d := range r.donations {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out, nil
}
