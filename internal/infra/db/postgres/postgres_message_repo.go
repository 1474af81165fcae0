package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.MessageRepository = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

const insertMessageSQL = `
INSERT INTO chat_messages (id, user_id, role, content, tokens, created_at)
VALUES ($1, $2, $3, $4, $5, $6);`

// SavePair writes both records inside one transaction so a retried job
// never observes the user message without its assistant reply.
func (r *messageRepo) SavePair(ctx context.Context, pair *model.MessagePair) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrPersistenceFailure, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, msg := range []*model.ChatMessage{&pair.User, &pair.Assistant} {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		_, err := tx.Exec(ctx, insertMessageSQL,
			msg.ID, msg.UserID, msg.Role, msg.Content, msg.Tokens, msg.CreatedAt)
		if err != nil {
			// A duplicate id means this pair was already written by an
			// earlier attempt of the same job; the retry is a no-op.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				continue
			}
			return fmt.Errorf("%w: insert %s message: %v", domain.ErrPersistenceFailure, msg.Role, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *messageRepo) FindRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, role, content, tokens, created_at
FROM chat_messages
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Tokens, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows come back newest-first; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
