package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type ReviewSummary struct {
	Reviews       []models.Review `json:"reviews"`
	AverageRating float64         `json:"average_rating"`
	Count         int             `json:"count"`
}

type ReviewService interface {
	Upsert(ctx context.Context, actor models.Actor, rating int, comment string) (*models.Review, error)
	Mine(ctx context.Context, actor models.Actor) (*models.Review, error)
	List(ctx context.Context) (*ReviewSummary, error)
	Delete(ctx context.Context, actor models.Actor) error
}

type reviewService struct {
	reviews  repository.ReviewRepository
	settings Settings
}

func NewReviewService(reviews repository.ReviewRepository, settings Settings) *reviewService {
	return &reviewService{reviews: reviews, settings: settings.withDefaults()}
}

// Upsert stores the actor's single review, replacing any earlier one.
func (s *reviewService) Upsert(ctx context.Context, actor models.Actor, rating int, comment string) (*models.Review, error) {
	ctx, span := tracer.Start(ctx, "UpsertReview")
	defer span.End()

	comment = strings.TrimSpace(comment)
	switch {
	case rating < models.MinRating || rating > models.MaxRating:
		return nil, pkgerrors.ErrInvalidRating
	case len(strings.Fields(comment)) > models.MaxReviewWordCount:
		return nil, pkgerrors.ErrCommentTooLong
	}

	now := s.settings.Now()
	review := &models.Review{
		UserID:    actor.UID,
		UserName:  actor.DisplayName,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		slog.Error("failed to upsert review", "user_id", actor.UID, "error", err)
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	slog.Info("review saved", "user_id", actor.UID, "rating", rating)
	return review, nil
}

func (s *reviewService) Mine(ctx context.Context, actor models.Actor) (*models.Review, error) {
	return s.reviews.GetByUser(ctx, actor.UID)
}

func (s *reviewService) List(ctx context.Context) (*ReviewSummary, error) {
	ctx, span := tracer.Start(ctx, "ListReviews")
	defer span.End()

	reviews, err := s.reviews.List(ctx)
	if err != nil {
		slog.Error("failed to list reviews", "error", err)
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	summary := &ReviewSummary{Reviews: reviews, Count: len(reviews)}
	if len(reviews) > 0 {
		var total int
		for _, r := range reviews {
			total += r.Rating
		}
		summary.AverageRating = float64(total) / float64(len(reviews))
	}
	return summary, nil
}

func (s *reviewService) Delete(ctx context.Context, actor models.Actor) error {
	if err := s.reviews.Delete(ctx, actor.UID); err != nil {
		slog.Error("failed to delete review", "user_id", actor.UID, "error", err)
		return err
	}
	slog.Info("review deleted", "user_id", actor.UID)
	return nil
}
