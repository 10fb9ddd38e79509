package repository

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

type ReviewRepository interface {
	Upsert(ctx context.Context, review *models.Review) error
	GetByUser(ctx context.Context, userID string) (*models.Review, error)
	List(ctx context.Context) ([]models.Review, error)
	Delete(ctx context.Context, userID string) error
}
