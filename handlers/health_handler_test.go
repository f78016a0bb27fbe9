package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/character-chat/repositories/postgres"
	"github.com/upb/character-chat/services/knowledge/memory"
)

func TestHandleHealth(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "healthy", data["status"])
	assert.NotEmpty(t, data["timestamp"])
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database and vector store respond", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer sqlDB.Close()
		mock.ExpectPing()
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		db := postgres.Wrap(sqlDB, logger)
		handler := NewHealthHandler(map[string]Checker{
			"database":     db.HealthCheck,
			"vector_store": memory.NewStore().Ping,
		}, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "healthy", data["status"])
		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "healthy", checks["vector_store"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unhealthy when the vector store is down", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Checker{
			"database":     func(context.Context) error { return nil },
			"vector_store": func(context.Context) error { return errors.New("connection refused") },
		}, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var response struct {
			Data HealthResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "unhealthy", response.Data.Status)
		assert.Equal(t, "healthy", response.Data.Checks["database"])
		assert.Equal(t, "unhealthy", response.Data.Checks["vector_store"])
	})

	t.Run("nil checkers are skipped", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Checker{"database": nil}, logger)

		w := httptest.NewRecorder()
		handler.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
