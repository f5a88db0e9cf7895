package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/openclaw/tg-relay-go/internal/database"
	"github.com/openclaw/tg-relay-go/internal/model"
)

// SessionRepository persists one opaque session string per user id.
// FindByUserID returns (nil, nil) when the user has no stored session.
type SessionRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.TelegramSession, error)
	Save(ctx context.Context, userID, sessionString string) error
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByUserID(ctx context.Context, userID string) (*model.TelegramSession, error) {
	var session model.TelegramSession
	err := r.db.GetContext(ctx, &session, `
		SELECT user_id, session_string, created_at, updated_at
		FROM telegram_sessions
		WHERE user_id = $1
	`, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Save(ctx context.Context, userID, sessionString string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO telegram_sessions (user_id, session_string)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			session_string = EXCLUDED.session_string,
			updated_at = NOW()
	`, userID, sessionString)
	return err
}
