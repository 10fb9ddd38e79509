package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/honeynil/CrowdfundServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/CrowdfundServiceTochka/pkg/errors"
)

type MessageService interface {
	StartThread(ctx context.Context, actor models.Actor, subject, body string) (*models.Thread, error)
	Reply(ctx context.Context, actor models.Actor, threadID, body string) (*models.Message, error)
	Threads(ctx context.Context, actor models.Actor) ([]models.Thread, error)
}

type messageService struct {
	messages repository.MessageRepository
	settings Settings
}

func NewMessageService(messages repository.MessageRepository, settings Settings) *messageService {
	return &messageService{messages: messages, settings: settings.withDefaults()}
}

func (s *messageService) StartThread(ctx context.Context, actor models.Actor, subject, body string) (*models.Thread, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" {
		return nil, pkgerrors.Invalid("subject", "required")
	}
	if body == "" {
		return nil, pkgerrors.Invalid("body", "required")
	}

	now := s.settings.Now()
	thread := &models.Thread{
		ID:        uuid.NewString(),
		UserID:    actor.UID,
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
	first := &models.Message{
		ID:        uuid.NewString(),
		ThreadID:  thread.ID,
		AuthorID:  actor.UID,
		Body:      body,
		CreatedAt: now,
	}
	if err := s.messages.CreateThread(ctx, thread, first); err != nil {
		slog.Error("failed to create thread", "user_id", actor.UID, "error", err)
		return nil, fmt.Errorf("create thread: %w", err)
	}
	thread.Messages = []models.Message{*first}
	slog.Info("thread created", "thread_id", thread.ID, "user_id", actor.UID)
	return thread, nil
}

// Reply appends to a thread. Only the thread owner and admins may reply.
func (s *messageService) Reply(ctx context.Context, actor models.Actor, threadID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, pkgerrors.Invalid("body", "required")
	}
	thread, err := s.messages.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != actor.UID && !actor.Is(models.RoleAdmin) {
		return nil, pkgerrors.ErrForbidden
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		AuthorID:  actor.UID,
		Body:      body,
		CreatedAt: s.settings.Now(),
	}
	if err := s.messages.Reply(ctx, msg); err != nil {
		slog.Error("failed to reply", "thread_id", threadID, "user_id", actor.UID, "error", err)
		return nil, fmt.Errorf("reply: %w", err)
	}
	slog.Info("thread replied", "thread_id", threadID, "user_id", actor.UID)
	return msg, nil
}

// Threads lists the actor's own threads; admins see every thread.
func (s *messageService) Threads(ctx context.Context, actor models.Actor) ([]models.Thread, error) {
	owner := actor.UID
	if actor.Is(models.RoleAdmin) {
		owner = ""
	}
	return s.messages.ListThreads(ctx, owner)
}
