package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// categorySQL represents a category row
type categorySQL struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}

func (c *categorySQL) toDomain() *domain.Category {
	return &domain.Category{ID: c.ID, UserID: c.UserID, Title: c.Title, CreatedAt: c.CreatedAt}
}

// CreateCategory inserts a new category for a user
func (db *DB) CreateCategory(ctx context.Context, category *domain.Category) error {
	query := `INSERT INTO categories (user_id, title) VALUES (?, ?)`

	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query, category.UserID, category.Title)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Msg: fmt.Sprintf("category %q already exists", category.Title)}
		}
		return fmt.Errorf("insert category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	category.ID = id
	return nil
}

// GetCategory retrieves a category by ID
func (db *DB) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var category categorySQL
	err := db.conn.GetContext(ctx, &category, `SELECT * FROM categories WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "category not found"}
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category.toDomain(), nil
}

// GetCategories retrieves all categories belonging to a user, oldest first
func (db *DB) GetCategories(ctx context.Context, userID int64) ([]*domain.Category, error) {
	var categories []categorySQL
	query := `SELECT * FROM categories WHERE user_id = ? ORDER BY created_at, id`
	err := db.conn.SelectContext(ctx, &categories, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}

	result := make([]*domain.Category, len(categories))
	for i, c := range categories {
		result[i] = c.toDomain()
	}
	return result, nil
}

// GetDefaultCategory returns the user's oldest category
func (db *DB) GetDefaultCategory(ctx context.Context, userID int64) (*domain.Category, error) {
	var category categorySQL
	query := `SELECT * FROM categories WHERE user_id = ? ORDER BY created_at, id LIMIT 1`
	err := db.conn.GetContext(ctx, &category, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "user has no categories"}
		}
		return nil, fmt.Errorf("get default category: %w", err)
	}
	return category.toDomain(), nil
}

// UpdateCategory renames a category
func (db *DB) UpdateCategory(ctx context.Context, category *domain.Category) error {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, `UPDATE categories SET title = ? WHERE id = ?`, category.Title, category.ID)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Msg: fmt.Sprintf("category %q already exists", category.Title)}
		}
		return fmt.Errorf("update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "category not found"}
	}
	return nil
}

// DeleteCategory removes a category, cascading to its feeds and their entries
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "category not found"}
	}
	return nil
}
