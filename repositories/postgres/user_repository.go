package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/repositories"
)

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `uid, username, name, email, role, created_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO user_accounts (uid, username, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Name,
		user.Email,
		user.Role,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM user_accounts WHERE uid = $1`
	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var name sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&name,
		&user.Email,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if name.Valid {
		user.Name = &name.String
	}
	return user, nil
}
