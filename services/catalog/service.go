package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/repositories"
	"github.com/upb/character-chat/services"
)

// shortNamePattern keeps short names usable as vector store collection names
var shortNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// UserInput describes an account to provision. A zero ID is generated.
type UserInput struct {
	ID       uuid.UUID
	Username string
	Name     *string
	Email    string
	Role     models.UserRole
}

// CharacterInput describes a new character
type CharacterInput struct {
	ShortName          string
	Name               string
	Description        *string
	OriginalPrice      *float64
	NewPrice           *float64
	PercentageDiscount *float64
}

// CharacterPatch lists character fields to change; nil fields are kept
type CharacterPatch struct {
	ShortName          *string
	Name               *string
	Description        *string
	OriginalPrice      *float64
	NewPrice           *float64
	PercentageDiscount *float64
}

// Service provisions the accounts, characters and ownership grants chat
// depends on
type Service struct {
	users      repositories.UserRepository
	characters repositories.CharacterRepository
	txManager  repositories.TransactionManager
	logger     *zap.Logger
}

// NewService creates a catalog service
func NewService(
	users repositories.UserRepository,
	characters repositories.CharacterRepository,
	txManager repositories.TransactionManager,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:      users,
		characters: characters,
		txManager:  txManager,
		logger:     logger,
	}
}

// CreateUser registers an account. The id should match the subject of the
// bearer tokens the user will present.
func (s *Service) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return nil, invalid("username and email are required")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, invalid("role must be user or admin")
	}

	user := models.NewUser(username, email)
	if in.ID != uuid.Nil {
		user.ID = in.ID
	}
	user.Name = in.Name
	user.Role = role

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrUserExists
		}
		return nil, services.WrapInternal("failed to create user", err)
	}

	s.logger.Info("user provisioned",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	return user, nil
}

// CreateCharacter adds a character to the directory. Its knowledge
// collection is indexed separately.
func (s *Service) CreateCharacter(ctx context.Context, in CharacterInput) (*models.Character, error) {
	character := models.NewCharacter(strings.TrimSpace(in.ShortName), strings.TrimSpace(in.Name))
	character.Description = in.Description
	character.OriginalPrice = in.OriginalPrice
	character.NewPrice = in.NewPrice
	character.PercentageDiscount = in.PercentageDiscount

	if err := validateCharacter(character); err != nil {
		return nil, err
	}

	if err := s.characters.Create(ctx, character); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, services.ErrCharacterExists
		}
		return nil, services.WrapInternal("failed to create character", err)
	}

	s.logger.Info("character created",
		zap.Int64("character_id", character.ID),
		zap.String("short_name", character.ShortName))
	return character, nil
}

// UpdateCharacter applies patch to a character inside a transaction
func (s *Service) UpdateCharacter(ctx context.Context, id int64, patch CharacterPatch) (*models.Character, error) {
	return services.WithTransactionResult(ctx, s.txManager, func(ctx context.Context, tx repositories.Transaction) (*models.Character, error) {
		character, err := s.characters.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrCharacterNotFound
			}
			return nil, services.WrapInternal("failed to load character", err)
		}

		patch.apply(character)
		if err := validateCharacter(character); err != nil {
			return nil, err
		}
		character.UpdatedAt = time.Now()

		if err := s.characters.Update(ctx, character); err != nil {
			switch {
			case errors.Is(err, repositories.ErrDuplicate):
				return nil, services.ErrCharacterExists
			case errors.Is(err, repositories.ErrNotFound):
				return nil, services.ErrCharacterNotFound
			}
			return nil, services.WrapInternal("failed to update character", err)
		}
		return character, nil
	})
}

// GrantCharacter lets a user chat with a character
func (s *Service) GrantCharacter(ctx context.Context, userID uuid.UUID, characterID int64) error {
	return services.WithTransaction(ctx, s.txManager, func(ctx context.Context, tx repositories.Transaction) error {
		if _, err := s.users.GetByID(ctx, userID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrUserNotFound
			}
			return services.WrapInternal("failed to load user", err)
		}
		if _, err := s.characters.GetByID(ctx, characterID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return services.ErrCharacterNotFound
			}
			return services.WrapInternal("failed to load character", err)
		}

		if err := s.characters.GrantOwnership(ctx, userID, characterID); err != nil {
			switch {
			case errors.Is(err, repositories.ErrDuplicate):
				return services.ErrCharacterAlreadyOwned
			case errors.Is(err, repositories.ErrNotFound):
				return services.ErrCharacterNotFound
			}
			return services.WrapInternal("failed to grant character", err)
		}

		s.logger.Info("character granted",
			zap.String("user_id", userID.String()),
			zap.Int64("character_id", characterID))
		return nil
	})
}

func (p CharacterPatch) apply(c *models.Character) {
	if p.ShortName != nil {
		c.ShortName = strings.TrimSpace(*p.ShortName)
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.OriginalPrice != nil {
		c.OriginalPrice = p.OriginalPrice
	}
	if p.NewPrice != nil {
		c.NewPrice = p.NewPrice
	}
	if p.PercentageDiscount != nil {
		c.PercentageDiscount = p.PercentageDiscount
	}
}

func validateCharacter(c *models.Character) error {
	if !shortNamePattern.MatchString(c.ShortName) {
		return invalid("short_name must be an identifier such as tran_hung_dao")
	}
	if c.Name == "" {
		return invalid("name is required")
	}
	for _, price := range []*float64{c.OriginalPrice, c.NewPrice} {
		if price != nil && *price < 0 {
			return invalid("prices cannot be negative")
		}
	}
	if d := c.PercentageDiscount; d != nil && (*d < 0 || *d > 100) {
		return invalid("percentage_discount must be between 0 and 100")
	}
	return nil
}

func invalid(message string) error {
	return services.NewDomainError(services.ErrorTypeValidation, message, services.ErrInvalidInput)
}
