package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// sessionSQL represents a session row
type sessionSQL struct {
	Token     string    `db:"token"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateSession inserts a new session
func (db *DB) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`
	err := db.withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, query, session.Token, session.UserID, session.ExpiresAt.UTC())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token, expired sessions are reported as not found
func (db *DB) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var session sessionSQL
	query := `SELECT * FROM sessions WHERE token = ? AND expires_at > ?`
	err := db.conn.GetContext(ctx, &session, query, token, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "session not found"}
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &domain.Session{
		Token:     session.Token,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}, nil
}

// DeleteSession removes a session by token
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	err := db.withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions past their expiry, returns the number removed
func (db *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return removed, nil
}
