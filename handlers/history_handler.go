package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/utils"
)

// HistoryService is the subset of history.Service the handlers use
type HistoryService interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.HistoryLog, error)
	ListByCharacter(ctx context.Context, characterID int64, limit, offset int) ([]*models.HistoryLog, error)
	UpdateFeedback(ctx context.Context, actorID uuid.UUID, admin bool, logID int64, feedback string) (*models.HistoryLog, error)
}

// FeedbackRequest is the body of PUT /api/v1/history/feedback
type FeedbackRequest struct {
	ID       int64  `json:"id" validate:"gt=0"`
	Feedback string `json:"feedback" validate:"required,oneof=like dislike"`
}

// HistoryHandler handles interaction history HTTP requests
type HistoryHandler struct {
	service HistoryService
	logger  *zap.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(service HistoryService, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{
		service: service,
		logger:  logger,
	}
}

// HandleMyHistory handles GET /api/v1/history/me
func (h *HistoryHandler) HandleMyHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r, h.logger)
	if !ok {
		return
	}
	h.listByUser(w, r, claims.UserID)
}

// HandleUserHistory handles GET /api/v1/history/users/{userID}
func (h *HistoryHandler) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "userID must be a valid UUID", nil)
		return
	}
	h.listByUser(w, r, userID)
}

func (h *HistoryHandler) listByUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	logs, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, logs)
}

// HandleCharacterHistory handles GET /api/v1/history/characters/{characterID}
func (h *HistoryHandler) HandleCharacterHistory(w http.ResponseWriter, r *http.Request) {
	characterID, ok := characterIDParam(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pagination(w, r)
	if !ok {
		return
	}

	logs, err := h.service.ListByCharacter(r.Context(), characterID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, logs)
}

// HandleFeedback handles PUT /api/v1/history/feedback
func (h *HistoryHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	claims, ok := caller(w, r, h.logger)
	if !ok {
		return
	}

	var req FeedbackRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	log, err := h.service.UpdateFeedback(r.Context(), claims.UserID, claims.IsAdmin(), req.ID, req.Feedback)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, log)
}
