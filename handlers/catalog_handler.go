package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/services/catalog"
	"github.com/upb/character-chat/utils"
)

// CatalogService is the subset of catalog.Service the handlers use
type CatalogService interface {
	CreateUser(ctx context.Context, in catalog.UserInput) (*models.User, error)
	CreateCharacter(ctx context.Context, in catalog.CharacterInput) (*models.Character, error)
	UpdateCharacter(ctx context.Context, id int64, patch catalog.CharacterPatch) (*models.Character, error)
	GrantCharacter(ctx context.Context, userID uuid.UUID, characterID int64) error
}

// CreateUserRequest is the body of POST /api/v1/users
type CreateUserRequest struct {
	ID       string  `json:"id,omitempty" validate:"omitempty,uuid"`
	Username string  `json:"username" validate:"notblank,max=255"`
	Name     *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Email    string  `json:"email" validate:"required,email,max=255"`
	Role     string  `json:"role,omitempty" validate:"omitempty,oneof=user admin"`
}

// CreateCharacterRequest is the body of POST /api/v1/characters
type CreateCharacterRequest struct {
	ShortName          string   `json:"short_name" validate:"notblank,max=255"`
	Name               string   `json:"name" validate:"notblank,max=255"`
	Description        *string  `json:"description,omitempty"`
	OriginalPrice      *float64 `json:"original_price,omitempty" validate:"omitempty,gte=0"`
	NewPrice           *float64 `json:"new_price,omitempty" validate:"omitempty,gte=0"`
	PercentageDiscount *float64 `json:"percentage_discount,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateCharacterRequest is the body of PUT /api/v1/characters/{characterID}.
// Omitted fields keep their value.
type UpdateCharacterRequest struct {
	ShortName          *string  `json:"short_name,omitempty" validate:"omitempty,notblank,max=255"`
	Name               *string  `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description        *string  `json:"description,omitempty"`
	OriginalPrice      *float64 `json:"original_price,omitempty" validate:"omitempty,gte=0"`
	NewPrice           *float64 `json:"new_price,omitempty" validate:"omitempty,gte=0"`
	PercentageDiscount *float64 `json:"percentage_discount,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// GrantRequest is the body of POST /api/v1/characters/{characterID}/owners
type GrantRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// CatalogHandler handles the admin endpoints that provision users,
// characters and ownership
type CatalogHandler struct {
	service CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreateUser handles POST /api/v1/users
func (h *CatalogHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	in := catalog.UserInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Role:     models.UserRole(req.Role),
	}
	if req.ID != "" {
		// validated above
		in.ID = uuid.MustParse(req.ID)
	}

	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, user)
}

// HandleCreateCharacter handles POST /api/v1/characters
func (h *CatalogHandler) HandleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req CreateCharacterRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	character, err := h.service.CreateCharacter(r.Context(), catalog.CharacterInput{
		ShortName:          req.ShortName,
		Name:               req.Name,
		Description:        req.Description,
		OriginalPrice:      req.OriginalPrice,
		NewPrice:           req.NewPrice,
		PercentageDiscount: req.PercentageDiscount,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, character)
}

// HandleUpdateCharacter handles PUT /api/v1/characters/{characterID}
func (h *CatalogHandler) HandleUpdateCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, ok := characterIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateCharacterRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}

	character, err := h.service.UpdateCharacter(r.Context(), characterID, catalog.CharacterPatch{
		ShortName:          req.ShortName,
		Name:               req.Name,
		Description:        req.Description,
		OriginalPrice:      req.OriginalPrice,
		NewPrice:           req.NewPrice,
		PercentageDiscount: req.PercentageDiscount,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, character)
}

// HandleGrantCharacter handles POST /api/v1/characters/{characterID}/owners
func (h *CatalogHandler) HandleGrantCharacter(w http.ResponseWriter, r *http.Request) {
	characterID, ok := characterIDParam(w, r)
	if !ok {
		return
	}

	var req GrantRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	userID := uuid.MustParse(req.UserID)

	if err := h.service.GrantCharacter(r.Context(), userID, characterID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// characterIDParam reads the {characterID} path parameter, writing a 400 on bad input
func characterIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	characterID, err := strconv.ParseInt(chi.URLParam(r, "characterID"), 10, 64)
	if err != nil || characterID <= 0 {
		_ = utils.WriteBadRequest(w, "characterID must be a positive integer", nil)
		return 0, false
	}
	return characterID, true
}
