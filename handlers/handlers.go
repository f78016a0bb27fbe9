package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/utils"
)

// decodeAndValidate parses a JSON body into dst and runs struct validation,
// writing a 400 and returning false on failure
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) bool {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	if err := utils.DecodeJSON(w, r, dst); err != nil {
		logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, logger)
		return false
	}
	return true
}

// caller returns the authenticated claims or writes a 401
func caller(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*middleware.Claims, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil || claims.UserID == uuid.Nil {
		logger.Error("claims not found in context",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return claims, true
}

// pagination reads limit and offset query parameters, writing a 400 on bad input
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := utils.QueryInt(r, "limit", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return 0, 0, false
	}
	offset, err := utils.QueryInt(r, "offset", 0)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return 0, 0, false
	}
	return limit, offset, true
}
