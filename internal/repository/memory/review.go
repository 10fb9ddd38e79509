package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type ReviewRepository struct {
	mu      sync.Mutex
	reviews map[string]models.Review
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{reviews: make(map[string]models.Review)}
}

func (r *ReviewRepository) Upsert(ctx context.Context, review *models.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.reviews[review.UserID]; ok {
		review.CreatedAt = existing.CreatedAt
	}
	r.reviews[review.UserID] = *review
	return nil
}

func (r *ReviewRepository) GetByUser(ctx context.Context, userID string) (*models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	review, ok := r.reviews[userID]
	if !ok {
		return nil, pkgerrors.NotFound("review", userID)
	}
	return &review, nil
}

// List returns reviews newest first.
func (r *ReviewRepository) List(ctx context.Context) ([]models.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Review, 0, len(r.reviews))
	for _, review := range r.reviews {
		out = append(out, review)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reviews[userID]; !ok {
		return pkgerrors.NotFound("review", userID)
	}
	delete(r.reviews, userID)
	return nil
}
