package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/services/chat"
	"github.com/upb/character-chat/utils"
)

// ChatService is the subset of chat.Service the handlers use
type ChatService interface {
	Chat(ctx context.Context, userID uuid.UUID, characterID int64, question string) (*chat.Result, error)
	Evaluate(ctx context.Context, actorID uuid.UUID, question, shortName, characterName string) (string, string, error)
	Characters(ctx context.Context, userID uuid.UUID, admin bool, limit, offset int) ([]*models.Character, error)
}

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	CharacterID int64  `json:"character_id" validate:"gt=0"`
	Question    string `json:"question" validate:"notblank,max=4000"`
}

// RAGRequest is the body of POST /api/v1/rag
type RAGRequest struct {
	Question  string `json:"question" validate:"notblank,max=4000"`
	ShortName string `json:"short_name" validate:"notblank,max=100"`
	Name      string `json:"name" validate:"notblank,max=200"`
}

// RAGResponse carries the rendered prompt with the answer
type RAGResponse struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

// ChatHandler handles chat and character HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r, h.logger)
	if !ok {
		return
	}

	var req ChatRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Chat(r.Context(), claims.UserID, req.CharacterID, req.Question)
	if err != nil {
		h.logger.Warn("chat failed",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Int64("character_id", req.CharacterID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// HandleRAG handles POST /api/v1/rag
func (h *ChatHandler) HandleRAG(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r, h.logger)
	if !ok {
		return
	}

	var req RAGRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	prompt, answer, err := h.service.Evaluate(r.Context(), claims.UserID, req.Question, req.ShortName, req.Name)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, RAGResponse{Prompt: prompt, Answer: answer})
}

// HandleListCharacters handles GET /api/v1/characters
func (h *ChatHandler) HandleListCharacters(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r, h.logger)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	characters, err := h.service.Characters(r.Context(), claims.UserID, claims.IsAdmin(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, characters)
}
