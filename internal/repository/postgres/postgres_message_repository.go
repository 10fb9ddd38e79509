package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/honeynil/CrowdfundServiceTochka/internal/models"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

type PostgresMessageRepository struct {
	db *sql.DB
}

func NewPostgresMessageRepository(db *sql.DB) *PostgresMessageRepository {
	return &PostgresMessageRepository{db: db}
}

const insertMessage = `INSERT INTO messages (id, thread_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`

// CreateThread stores the thread and its opening message in one transaction.
func (r *PostgresMessageRepository) CreateThread(ctx context.Context, thread *models.Thread, first *models.Message) (err error) {
	ctx, span, done := begin(ctx, "message-repository", "CreateThread")
	span.SetAttributes(attribute.String("thread_id", thread.ID), attribute.String("user_id", thread.UserID))
	defer done(&err)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "CreateThread", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	_, err = dbTx.ExecContext(ctx, `INSERT INTO threads (id, user_id, subject, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		thread.ID, thread.UserID, thread.Subject, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		slog.Error("failed to create thread", "method", "CreateThread", "thread_id", thread.ID, "error", err)
		return fmt.Errorf("failed to create thread: %w", rollback(dbTx, err))
	}
	_, err = dbTx.ExecContext(ctx, insertMessage, first.ID, thread.ID, first.AuthorID, first.Body, first.CreatedAt)
	if err != nil {
		slog.Error("failed to create message", "method", "CreateThread", "thread_id", thread.ID, "error", err)
		return fmt.Errorf("failed to create message: %w", rollback(dbTx, err))
	}
	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "CreateThread", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reply appends a message and bumps the thread's updated_at.
func (r *PostgresMessageRepository) Reply(ctx context.Context, message *models.Message) (err error) {
	ctx, span, done := begin(ctx, "message-repository", "ReplyThread")
	span.SetAttributes(attribute.String("thread_id", message.ThreadID))
	defer done(&err)

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Reply", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	res, err := dbTx.ExecContext(ctx, `UPDATE threads SET updated_at = $1 WHERE id = $2`, message.CreatedAt, message.ThreadID)
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", rollback(dbTx, err))
	}
	if err = expectOne(res, "thread", message.ThreadID); err != nil {
		return rollback(dbTx, err)
	}
	_, err = dbTx.ExecContext(ctx, insertMessage, message.ID, message.ThreadID, message.AuthorID, message.Body, message.CreatedAt)
	if err != nil {
		slog.Error("failed to create message", "method", "Reply", "thread_id", message.ThreadID, "error", err)
		return fmt.Errorf("failed to create message: %w", rollback(dbTx, err))
	}
	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Reply", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) GetThread(ctx context.Context, id string) (thread *models.Thread, err error) {
	ctx, span, done := begin(ctx, "message-repository", "GetThread")
	span.SetAttributes(attribute.String("thread_id", id))
	defer done(&err)

	var t models.Thread
	err = r.db.QueryRowContext(ctx, `SELECT id, user_id, subject, created_at, updated_at FROM threads WHERE id = $1`, id).
		Scan(&t.ID, &t.UserID, &t.Subject, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "thread", id)
	}
	threads := []models.Thread{t}
	if err = r.attachMessages(ctx, threads); err != nil {
		return nil, err
	}
	return &threads[0], nil
}

// ListThreads returns userID's threads oldest first; an empty userID lists all.
func (r *PostgresMessageRepository) ListThreads(ctx context.Context, userID string) (threads []models.Thread, err error) {
	ctx, _, done := begin(ctx, "message-repository", "ListThreads")
	defer done(&err)

	query := `SELECT id, user_id, subject, created_at, updated_at FROM threads WHERE ($1 = '' OR user_id = $1) ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Error("failed to list threads", "method", "ListThreads", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	threads = make([]models.Thread, 0)
	for rows.Next() {
		var t models.Thread
		if err = rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threads: %w", err)
	}
	if err = r.attachMessages(ctx, threads); err != nil {
		return nil, err
	}
	return threads, nil
}

func (r *PostgresMessageRepository) CountThreads(ctx context.Context, userID string) (n int, err error) {
	ctx, _, done := begin(ctx, "message-repository", "CountThreads")
	defer done(&err)

	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads WHERE ($1 = '' OR user_id = $1)`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}
	return n, nil
}

// attachMessages loads every message of threads in a single query.
func (r *PostgresMessageRepository) attachMessages(ctx context.Context, threads []models.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	index := make(map[string]int, len(threads))
	ids := make([]string, len(threads))
	for i, t := range threads {
		index[t.ID] = i
		ids[i] = t.ID
		threads[i].Messages = make([]models.Message, 0)
	}

	query := `SELECT id, thread_id, author_id, body, created_at FROM messages WHERE thread_id = ANY($1) ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		i := index[m.ThreadID]
		threads[i].Messages = append(threads[i].Messages, m)
	}
	return rows.Err()
}
