package memory

import (
	"context"
	"sync"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type MessageRepository struct {
	mu      sync.Mutex
	threads map[string]*models.Thread
	order   []string
}

func NewMessageRepository() *MessageRepository {
	return &MessageRepository{threads: make(map[string]*models.Thread)}
}

func (r *MessageRepository) CreateThread(ctx context.Context, thread *models.Thread, first *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[thread.ID]; ok {
		return &pkgerrors.DuplicateIDError{ID: thread.ID}
	}
	stored := *thread
	stored.Messages = []models.Message{*first}
	r.threads[thread.ID] = &stored
	r.order = append(r.order, thread.ID)
	return nil
}

func (r *MessageRepository) Reply(ctx context.Context, message *models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[message.ThreadID]
	if !ok {
		return pkgerrors.NotFound("thread", message.ThreadID)
	}
	thread.Messages = append(thread.Messages, *message)
	thread.UpdatedAt = message.CreatedAt
	return nil
}

func (r *MessageRepository) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	thread, ok := r.threads[id]
	if !ok {
		return nil, pkgerrors.NotFound("thread", id)
	}
	out := *thread
	out.Messages = append([]models.Message(nil), thread.Messages...)
	return &out, nil
}

func (r *MessageRepository) ListThreads(ctx context.Context, userID string) ([]models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Thread, 0)
	for _, id := range r.order {
		thread := r.threads[id]
		if userID != "" && thread.UserID != userID {
			continue
		}
		t := *thread
		t.Messages = append([]models.Message(nil), thread.Messages...)
		out = append(out, t)
	}
	return out, nil
}

func (r *MessageRepository) CountThreads(ctx context.Context, userID string) (int, error) {
	threads, err := r.ListThreads(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(threads), nil
}
