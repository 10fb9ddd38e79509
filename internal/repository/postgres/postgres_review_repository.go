package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type PostgresReviewRepository struct {
	db *sql.DB
}

func NewPostgresReviewRepository(db *sql.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

// Upsert keeps one review per user. The original created_at survives and is
// written back into review.
func (r *PostgresReviewRepository) Upsert(ctx context.Context, review *models.Review) (err error) {
	ctx, _, done := begin(ctx, "review-repository", "UpsertReview")
	defer done(&err)

	if review == nil {
		return pkgerrors.Invalid("review", "required")
	}
	query := `
		INSERT INTO reviews (user_id, user_name, rating, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET user_name = EXCLUDED.user_name,
			rating = EXCLUDED.rating,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`
	err = r.db.QueryRowContext(ctx, query, review.UserID, review.UserName, review.Rating, review.Comment,
		review.CreatedAt, review.UpdatedAt).Scan(&review.CreatedAt)
	if err != nil {
		slog.Error("failed to upsert review", "method", "Upsert", "user_id", review.UserID, "error", err)
		return fmt.Errorf("failed to upsert review: %w", err)
	}
	return nil
}

func (r *PostgresReviewRepository) GetByUser(ctx context.Context, userID string) (review *models.Review, err error) {
	ctx, _, done := begin(ctx, "review-repository", "GetReviewByUser")
	defer done(&err)

	var rv models.Review
	query := `SELECT user_id, user_name, rating, comment, created_at, updated_at FROM reviews WHERE user_id = $1`
	err = r.db.QueryRowContext(ctx, query, userID).Scan(&rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "review", userID)
	}
	return &rv, nil
}

func (r *PostgresReviewRepository) List(ctx context.Context) (reviews []models.Review, err error) {
	ctx, _, done := begin(ctx, "review-repository", "ListReviews")
	defer done(&err)

	query := `SELECT user_id, user_name, rating, comment, created_at, updated_at FROM reviews ORDER BY updated_at DESC, user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("failed to list reviews", "method", "List", "error", err)
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews = make([]models.Review, 0)
	for rows.Next() {
		var rv models.Review
		if err = rows.Scan(&rv.UserID, &rv.UserName, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

func (r *PostgresReviewRepository) Delete(ctx context.Context, userID string) (err error) {
	ctx, _, done := begin(ctx, "review-repository", "DeleteReview")
	defer done(&err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("failed to delete review", "method", "Delete", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectOne(res, "review", userID)
}
