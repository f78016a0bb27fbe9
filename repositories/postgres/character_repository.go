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

// CharacterRepository implements the repositories.CharacterRepository interface
type CharacterRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db *DB, logger *zap.Logger) repositories.CharacterRepository {
	return &CharacterRepository{
		db:     db,
		logger: logger,
	}
}

const characterColumns = `
	c.id, c.short_name, c.name, c.description, c.background_image, c.profile_image,
	c.original_price, c.new_price, c.percentage_discount, c.created_at, c.updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// GetByID retrieves a character by ID
func (r *CharacterRepository) GetByID(ctx context.Context, id int64) (*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters c WHERE c.id = $1`

	c, err := scanCharacter(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("character %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return c, nil
}

// GetByShortName retrieves a character by short name
func (r *CharacterRepository) GetByShortName(ctx context.Context, shortName string) (*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters c WHERE c.short_name = $1`

	c, err := scanCharacter(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, shortName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("character %s: %w", shortName, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return c, nil
}

// List retrieves characters with pagination
func (r *CharacterRepository) List(ctx context.Context, limit, offset int) ([]*models.Character, error) {
	query := `SELECT ` + characterColumns + ` FROM characters c ORDER BY c.id LIMIT $1 OFFSET $2`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	return scanCharacters(rows)
}

// ListOwnedBy retrieves the characters a user owns
func (r *CharacterRepository) ListOwnedBy(ctx context.Context, userID uuid.UUID) ([]*models.Character, error) {
	query := `
		SELECT ` + characterColumns + `
		FROM characters c
		JOIN user_character uc ON uc.character_id = c.id
		WHERE uc.user_uid = $1
		ORDER BY c.id
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned characters: %w", err)
	}
	defer rows.Close()

	return scanCharacters(rows)
}

// IsOwnedBy reports whether the user owns the character
func (r *CharacterRepository) IsOwnedBy(ctx context.Context, userID uuid.UUID, characterID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_character WHERE user_uid = $1 AND character_id = $2)`

	var owned bool
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, userID, characterID).Scan(&owned); err != nil {
		return false, fmt.Errorf("failed to check character ownership: %w", err)
	}
	return owned, nil
}

// Create inserts a character and sets its ID and timestamps
func (r *CharacterRepository) Create(ctx context.Context, c *models.Character) error {
	query := `
		INSERT INTO characters (short_name, name, description, background_image, profile_image,
			original_price, new_price, percentage_discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		c.ShortName,
		c.Name,
		c.Description,
		c.BackgroundImage,
		c.ProfileImage,
		c.OriginalPrice,
		c.NewPrice,
		c.PercentageDiscount,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("character %s: %w", c.ShortName, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create character: %w", err)
	}

	r.logger.Debug("character created",
		zap.Int64("id", c.ID),
		zap.String("short_name", c.ShortName))
	return nil
}

// Update overwrites every editable column of the character
func (r *CharacterRepository) Update(ctx context.Context, c *models.Character) error {
	query := `
		UPDATE characters
		SET short_name = $1, name = $2, description = $3, background_image = $4, profile_image = $5,
			original_price = $6, new_price = $7, percentage_discount = $8, updated_at = $9
		WHERE id = $10
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		c.ShortName,
		c.Name,
		c.Description,
		c.BackgroundImage,
		c.ProfileImage,
		c.OriginalPrice,
		c.NewPrice,
		c.PercentageDiscount,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("character %s: %w", c.ShortName, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to update character: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("character %d: %w", c.ID, repositories.ErrNotFound)
	}
	return nil
}

// GrantOwnership inserts a user_character row
func (r *CharacterRepository) GrantOwnership(ctx context.Context, userID uuid.UUID, characterID int64) error {
	query := `
		INSERT INTO user_character (user_uid, character_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, userID, characterID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s or character %d: %w", userID, characterID, repositories.ErrNotFound)
		}
		return fmt.Errorf("failed to grant character: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s already owns character %d: %w", userID, characterID, repositories.ErrDuplicate)
	}
	return nil
}

func scanCharacters(rows *sql.Rows) ([]*models.Character, error) {
	characters := make([]*models.Character, 0)
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating characters: %w", err)
	}
	return characters, nil
}

func scanCharacter(row rowScanner) (*models.Character, error) {
	c := &models.Character{}
	var (
		description, background, profile sql.NullString
		original, price, discount         sql.NullFloat64
	)
	err := row.Scan(
		&c.ID,
		&c.ShortName,
		&c.Name,
		&description,
		&background,
		&profile,
		&original,
		&price,
		&discount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Description = nullString(description)
	c.BackgroundImage = nullString(background)
	c.ProfileImage = nullString(profile)
	c.OriginalPrice = nullFloat(original)
	c.NewPrice = nullFloat(price)
	c.PercentageDiscount = nullFloat(discount)
	return c, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
