package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/services"
)

// MockHistoryService is a mock implementation of HistoryService
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.HistoryLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryLog), args.Error(1)
}

func (m *MockHistoryService) ListByCharacter(ctx context.Context, characterID int64, limit, offset int) ([]*models.HistoryLog, error) {
	args := m.Called(ctx, characterID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HistoryLog), args.Error(1)
}

func (m *MockHistoryService) UpdateFeedback(ctx context.Context, actorID uuid.UUID, admin bool, logID int64, feedback string) (*models.HistoryLog, error) {
	args := m.Called(ctx, actorID, admin, logID, feedback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HistoryLog), args.Error(1)
}

// withURLParams attaches chi route params to a request
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleMyHistory(t *testing.T) {
	logger := zap.NewNop()
	userID := uuid.New()

	svc := new(MockHistoryService)
	handler := NewHistoryHandler(svc, logger)
	log := models.NewHistoryLog(userID, 3, "q", "p", "a")
	log.ID = 7
	svc.On("ListByUser", mock.Anything, userID, 20, 40).Return([]*models.HistoryLog{log}, nil)

	w := httptest.NewRecorder()
	handler.HandleMyHistory(w, authedRequest(http.MethodGet, "/api/v1/history/me?limit=20&offset=40", nil,
		&middleware.Claims{UserID: userID}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":7`)
	svc.AssertExpectations(t)
}

func TestHandleUserHistory(t *testing.T) {
	logger := zap.NewNop()

	t.Run("lists the given user", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)
		target := uuid.New()
		svc.On("ListByUser", mock.Anything, target, 0, 0).Return([]*models.HistoryLog{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/users/"+target.String(), nil)
		w := httptest.NewRecorder()
		handler.HandleUserHistory(w, withURLParams(req, map[string]string{"userID": target.String()}))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("invalid user id", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/history/users/abc", nil)
		w := httptest.NewRecorder()
		handler.HandleUserHistory(w, withURLParams(req, map[string]string{"userID": "abc"}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleCharacterHistory(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		param      string
		setup      func(svc *MockHistoryService)
		wantStatus int
	}{
		{
			name:  "lists logs",
			param: "3",
			setup: func(svc *MockHistoryService) {
				svc.On("ListByCharacter", mock.Anything, int64(3), 0, 0).Return([]*models.HistoryLog{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "unknown character",
			param: "99",
			setup: func(svc *MockHistoryService) {
				svc.On("ListByCharacter", mock.Anything, int64(99), 0, 0).Return(nil, services.ErrCharacterNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{name: "not a number", param: "x", setup: func(*MockHistoryService) {}, wantStatus: http.StatusBadRequest},
		{name: "zero", param: "0", setup: func(*MockHistoryService) {}, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockHistoryService)
			tt.setup(svc)
			handler := NewHistoryHandler(svc, logger)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/history/characters/"+tt.param, nil)
			w := httptest.NewRecorder()
			handler.HandleCharacterHistory(w, withURLParams(req, map[string]string{"characterID": tt.param}))

			assert.Equal(t, tt.wantStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandleFeedback(t *testing.T) {
	logger := zap.NewNop()
	userID := uuid.New()
	user := &middleware.Claims{UserID: userID, Role: models.RoleUser}

	t.Run("records feedback", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)
		updated := models.NewHistoryLog(userID, 3, "q", "p", "a").WithFeedback(models.FeedbackLike)
		updated.ID = 7
		svc.On("UpdateFeedback", mock.Anything, userID, false, int64(7), "like").Return(updated, nil)

		w := httptest.NewRecorder()
		handler.HandleFeedback(w, authedRequest(http.MethodPut, "/api/v1/history/feedback",
			FeedbackRequest{ID: 7, Feedback: "like"}, user))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "like", data["feedback"])
	})

	t.Run("unknown feedback value", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)

		w := httptest.NewRecorder()
		handler.HandleFeedback(w, authedRequest(http.MethodPut, "/api/v1/history/feedback",
			FeedbackRequest{ID: 7, Feedback: "love"}, user))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateFeedback", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("someone else's log", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)
		svc.On("UpdateFeedback", mock.Anything, userID, false, int64(8), "dislike").Return(nil, services.ErrForbidden)

		w := httptest.NewRecorder()
		handler.HandleFeedback(w, authedRequest(http.MethodPut, "/api/v1/history/feedback",
			FeedbackRequest{ID: 8, Feedback: "dislike"}, user))

		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown log", func(t *testing.T) {
		svc := new(MockHistoryService)
		handler := NewHistoryHandler(svc, logger)
		svc.On("UpdateFeedback", mock.Anything, userID, false, int64(9), "like").Return(nil, services.ErrHistoryLogNotFound)

		w := httptest.NewRecorder()
		handler.HandleFeedback(w, authedRequest(http.MethodPut, "/api/v1/history/feedback",
			FeedbackRequest{ID: 9, Feedback: "like"}, user))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
