package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/upb/character-chat/models"
)

var (
	// ErrNotFound is wrapped by every repository lookup that matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is wrapped when a write collides with a unique key
	ErrDuplicate = errors.New("record already exists")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// UserRepository handles user accounts
type UserRepository interface {
	// Create creates a new user; a taken id or email wraps ErrDuplicate
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// CharacterRepository is the character directory
type CharacterRepository interface {
	// GetByID retrieves a character by ID
	GetByID(ctx context.Context, id int64) (*models.Character, error)

	// GetByShortName retrieves a character by the short name of its knowledge collection
	GetByShortName(ctx context.Context, shortName string) (*models.Character, error)

	// List retrieves characters ordered by id with pagination
	List(ctx context.Context, limit, offset int) ([]*models.Character, error)

	// ListOwnedBy retrieves the characters a user owns
	ListOwnedBy(ctx context.Context, userID uuid.UUID) ([]*models.Character, error)

	// IsOwnedBy reports whether the user owns the character
	IsOwnedBy(ctx context.Context, userID uuid.UUID, characterID int64) (bool, error)

	// Create stores a character and sets its ID; a taken short name wraps ErrDuplicate
	Create(ctx context.Context, character *models.Character) error

	// Update overwrites the editable fields of an existing character
	Update(ctx context.Context, character *models.Character) error

	// GrantOwnership lets a user chat with a character. An existing grant
	// wraps ErrDuplicate; an unknown user or character wraps ErrNotFound.
	GrantOwnership(ctx context.Context, userID uuid.UUID, characterID int64) error
}

// HistoryLogRepository persists chat interactions
type HistoryLogRepository interface {
	// Insert stores a log entry and sets its ID
	Insert(ctx context.Context, log *models.HistoryLog) error

	// GetByID retrieves a log entry, locking it when called inside a transaction
	GetByID(ctx context.Context, id int64) (*models.HistoryLog, error)

	// ListByUser retrieves a user's log entries, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.HistoryLog, error)

	// ListByCharacter retrieves a character's log entries, newest first
	ListByCharacter(ctx context.Context, characterID int64, limit, offset int) ([]*models.HistoryLog, error)

	// UpdateFeedback sets the feedback of a log entry
	UpdateFeedback(ctx context.Context, id int64, feedback models.Feedback) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users       UserRepository
	Characters  CharacterRepository
	HistoryLogs HistoryLogRepository
}
