package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// UserRepo is a read-only view of the users table.
type UserRepo struct {
	db sqlx.QueryerContext
}

// NewUserRepo constructs a new UserRepo.
func NewUserRepo(db sqlx.QueryerContext) *UserRepo { return &UserRepo{db: db} }

// GetByID returns the user with the given ID, or ErrNotFound.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.db, &u,
		`SELECT id, display_name, mobile, email, role FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
