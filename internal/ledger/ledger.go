// Package ledger is the append-only record of donations. It is the source of
// truth for every campaign total; campaign counters are a cache of it.
package ledger

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type Ledger struct {
	store repository.DonationRepository
	now   func() time.Time
	newID func() string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(l *Ledger) { l.newID = gen }
}

func New(store repository.DonationRepository, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records d. A missing ID or CreatedAt is filled in; a caller-supplied
// ID is kept and the store rejects it with DuplicateIDError if already used.
func (l *Ledger) Append(ctx context.Context, d models.Donation) (*models.Donation, error) {
	if d.Amount <= 0 {
		return nil, pkgerrors.ErrInvalidAmount
	}
	if d.DonorID == "" {
		return nil, pkgerrors.Invalid("donor_id", "required")
	}
	if d.CampaignID == "" {
		return nil, pkgerrors.Invalid("campaign_id", "required")
	}
	if d.ID == "" {
		d.ID = l.newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = l.now()
	}
	d.Status = models.DonationCompleted

	if err := l.store.Append(ctx, &d); err != nil {
		slog.Error("failed to append donation", "method", "Append", "donation_id", d.ID, "campaign_id", d.CampaignID, "error", err)
		return nil, fmt.Errorf("append donation: %w", err)
	}
	slog.Info("donation appended", "method", "Append", "donation_id", d.ID, "campaign_id", d.CampaignID, "donor_id", d.DonorID, "amount", d.Amount)
	return &d, nil
}

func (l *Ledger) ByCampaign(ctx context.Context, campaignID string) ([]models.Donation, error) {
	donations, err := l.store.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list donations for campaign %s: %w", campaignID, err)
	}
	return donations, nil
}

func (l *Ledger) ByDonor(ctx context.Context, donorID string) ([]models.Donation, error) {
	donations, err := l.store.ListByUser(ctx, donorID)
	if err != nil {
		return nil, fmt.Errorf("list donations for donor %s: %w", donorID, err)
	}
	return donations, nil
}

func (l *Ledger) All(ctx context.Context) ([]models.Donation, error) {
	donations, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	return donations, nil
}

// FindByTransaction looks up a prior donation carrying the client's
// idempotency key. It returns (nil, nil) when there is none.
func (l *Ledger) FindByTransaction(ctx context.Context, transactionID string) (*models.Donation, error) {
	if transactionID == "" {
		return nil, nil
	}
	d, err := l.store.GetByTransactionID(ctx, transactionID)
	switch {
	case err == nil:
		return d, nil
	case isNotFound(err):
		return nil, nil
	default:
		return nil, fmt.Errorf("find donation by transaction %s: %w", transactionID, err)
	}
}

func (l *Ledger) UniqueDonorCount(ctx context.Context, campaignID string) (int, error) {
	donations, err := l.ByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return UniqueDonors(donations), nil
}

// TotalsByCampaign returns the unique donor count of every campaign that
// has at least one donation, in one pass over the ledger.
func (l *Ledger) TotalsByCampaign(ctx context.Context) (map[string]int, error) {
	donations, err := l.All(ctx)
	if err != nil {
		return nil, err
	}
	return DonorCountsByCampaign(donations), nil
}

func (l *Ledger) SumByCampaign(ctx context.Context, campaignID string) (int64, error) {
	donations, err := l.ByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return Sum(donations), nil
}

func UniqueDonors(donations []models.Donation) int {
	seen := make(map[string]struct{}, len(donations))
	for _, d := range donations {
		seen[d.DonorID] = struct{}{}
	}
	return len(seen)
}

func DonorCountsByCampaign(donations []models.Donation) map[string]int {
	donors := make(map[string]map[string]struct{})
	for _, d := range donations {
		set, ok := donors[d.CampaignID]
		if !ok {
			set = make(map[string]struct{})
			donors[d.CampaignID] = set
		}
		set[d.DonorID] = struct{}{}
	}
	counts := make(map[string]int, len(donors))
	for id, set := range donors {
		counts[id] = len(set)
	}
	return counts
}

func Sum(donations []models.Donation) int64 {
	var total int64
	for _, d := range donations {
		total += d.Amount
	}
	return total
}

// SortNewestFirst orders donations for display. Ties keep ID order so two
// reads of the same ledger sort identically.
func SortNewestFirst(donations []models.Donation) {
	sort.SliceStable(donations, func(i, j int) bool {
		if donations[i].CreatedAt.Equal(donations[j].CreatedAt) {
			return donations[i].ID < donations[j].ID
		}
		return donations[i].CreatedAt.After(donations[j].CreatedAt)
	})
}

func isNotFound(err error) bool {
	return stderrors.Is(err, pkgerrors.ErrNotFound)
}
