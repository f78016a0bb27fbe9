package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/repositories"
	"github.com/upb/character-chat/services"
)

// MaxQuestionLength bounds a question in characters (runes)
const MaxQuestionLength = 4000

// Pipeline answers a question in a character's voice
type Pipeline interface {
	RAG(ctx context.Context, question, shortName, characterName string) (string, string, error)
}

// HistoryRecorder persists interactions
type HistoryRecorder interface {
	Record(ctx context.Context, log *models.HistoryLog) (int64, error)
	RecordAsync(log *models.HistoryLog) error
}

// Result is the outcome of one chat turn
type Result struct {
	Answer string `json:"answer"`
	LogID  int64  `json:"log_id"`
}

// Service lets users question the characters they own
type Service struct {
	users      repositories.UserRepository
	characters repositories.CharacterRepository
	pipeline   Pipeline
	history    HistoryRecorder
	logger     *zap.Logger
}

// NewService creates a chat service
func NewService(
	users repositories.UserRepository,
	characters repositories.CharacterRepository,
	pipeline Pipeline,
	history HistoryRecorder,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:      users,
		characters: characters,
		pipeline:   pipeline,
		history:    history,
		logger:     logger,
	}
}

// Chat answers question as the character and records the interaction.
// Pipeline errors are returned unchanged.
func (s *Service) Chat(ctx context.Context, userID uuid.UUID, characterID int64, question string) (*Result, error) {
	// Step 1: validate the question
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, services.ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > MaxQuestionLength {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "question is too long", services.ErrInvalidInput)
	}

	// Step 2: check the user and the character
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to load user", err)
	}

	character, err := s.characters.GetByID(ctx, characterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCharacterNotFound
		}
		return nil, services.WrapInternal("failed to load character", err)
	}

	// Step 3: check ownership
	owned, err := s.characters.IsOwnedBy(ctx, userID, characterID)
	if err != nil {
		return nil, services.WrapInternal("failed to check ownership", err)
	}
	if !owned {
		return nil, services.ErrCharacterNotOwned
	}

	// Step 4: run the pipeline
	prompt, answer, err := s.pipeline.RAG(ctx, question, character.ShortName, character.Name)
	if err != nil {
		return nil, err
	}

	// Step 5: record the interaction; its id is part of the response
	logID, err := s.history.Record(ctx, models.NewHistoryLog(userID, characterID, question, prompt, answer))
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat answered",
		zap.String("user_id", userID.String()),
		zap.Int64("character_id", characterID),
		zap.Int64("log_id", logID),
	)
	return &Result{Answer: answer, LogID: logID}, nil
}

// Evaluate runs the pipeline directly for an operator. When the short name
// belongs to a known character the run is recorded in the background.
func (s *Service) Evaluate(ctx context.Context, actorID uuid.UUID, question, shortName, characterName string) (string, string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", "", services.ErrEmptyQuestion
	}

	prompt, answer, err := s.pipeline.RAG(ctx, question, shortName, characterName)
	if err != nil {
		return "", "", err
	}

	character, err := s.characters.GetByShortName(ctx, shortName)
	switch {
	case err == nil:
		if recErr := s.history.RecordAsync(models.NewHistoryLog(actorID, character.ID, question, prompt, answer)); recErr != nil {
			s.logger.Warn("evaluation run not recorded", zap.String("short_name", shortName), zap.Error(recErr))
		}
	case !errors.Is(err, repositories.ErrNotFound):
		s.logger.Warn("character lookup failed", zap.String("short_name", shortName), zap.Error(err))
	}

	return prompt, answer, nil
}

// Characters lists the characters visible to the caller: admins see all,
// users see the ones they own.
func (s *Service) Characters(ctx context.Context, userID uuid.UUID, admin bool, limit, offset int) ([]*models.Character, error) {
	var (
		characters []*models.Character
		err        error
	)
	if admin {
		if limit <= 0 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}
		characters, err = s.characters.List(ctx, limit, offset)
	} else {
		characters, err = s.characters.ListOwnedBy(ctx, userID)
	}
	if err != nil {
		return nil, services.WrapInternal("failed to list characters", err)
	}
	return characters, nil
}
