package repository

import (
	"context"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
)

type MessageRepository interface {
	CreateThread(ctx context.Context, thread *models.Thread, first *models.Message) error
	Reply(ctx context.Context, message *models.Message) error
	GetThread(ctx context.Context, id string) (*models.Thread, error)
	ListThreads(ctx context.Context, userID string) ([]models.Thread, error)
	CountThreads(ctx context.Context, userID string) (int, error)
}
