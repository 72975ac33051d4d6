package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// userSQL represents a user row
type userSQL struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *userSQL) toDomain() *domain.User {
	return &domain.User{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// CreateUser inserts a new user, fails with ConflictError on duplicate email
func (db *DB) CreateUser(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (email, password_hash) VALUES (?, ?)`

	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query, user.Email, user.PasswordHash)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Msg: fmt.Sprintf("user %s already exists", user.Email)}
		}
		return fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetUser retrieves a user by ID
func (db *DB) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user userSQL
	err := db.conn.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "user not found"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user.toDomain(), nil
}

// GetUserByEmail retrieves a user by email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user userSQL
	err := db.conn.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "user not found"}
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user.toDomain(), nil
}

// isUniqueViolation checks if an error is a SQLite unique constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
