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

// HistoryLogRepository implements the repositories.HistoryLogRepository interface
type HistoryLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewHistoryLogRepository creates a new history log repository
func NewHistoryLogRepository(db *DB, logger *zap.Logger) repositories.HistoryLogRepository {
	return &HistoryLogRepository{
		db:     db,
		logger: logger,
	}
}

const historyLogColumns = `id, user_id, character_id, question, prompt, answer, feedback, created_at`

// Insert stores a new log entry and sets log.ID
func (r *HistoryLogRepository) Insert(ctx context.Context, log *models.HistoryLog) error {
	query := `
		INSERT INTO history_logs (user_id, character_id, question, prompt, answer, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var feedback interface{}
	if log.Feedback != nil {
		feedback = string(*log.Feedback)
	}

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		log.UserID,
		log.CharacterID,
		log.Question,
		log.Prompt,
		log.Answer,
		feedback,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to insert history log: %w", err)
	}

	r.logger.Debug("history log inserted",
		zap.Int64("id", log.ID),
		zap.Int64("character_id", log.CharacterID),
	)
	return nil
}

// GetByID retrieves a log entry. Inside a transaction the row is locked
// until the transaction ends.
func (r *HistoryLogRepository) GetByID(ctx context.Context, id int64) (*models.HistoryLog, error) {
	query := `SELECT ` + historyLogColumns + ` FROM history_logs WHERE id = $1`
	if _, inTx := GetTransactionFromContext(ctx); inTx {
		query += ` FOR UPDATE`
	}

	log, err := scanHistoryLog(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("history log %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get history log: %w", err)
	}
	return log, nil
}

// ListByUser retrieves a user's log entries with pagination
func (r *HistoryLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.HistoryLog, error) {
	query := `
		SELECT ` + historyLogColumns + `
		FROM history_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, limit, offset)
}

// ListByCharacter retrieves a character's log entries with pagination
func (r *HistoryLogRepository) ListByCharacter(ctx context.Context, characterID int64, limit, offset int) ([]*models.HistoryLog, error) {
	query := `
		SELECT ` + historyLogColumns + `
		FROM history_logs
		WHERE character_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, characterID, limit, offset)
}

// UpdateFeedback sets the feedback of a log entry
func (r *HistoryLogRepository) UpdateFeedback(ctx context.Context, id int64, feedback models.Feedback) error {
	query := `UPDATE history_logs SET feedback = $1 WHERE id = $2`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, string(feedback), id)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("history log %d: %w", id, repositories.ErrNotFound)
	}
	return nil
}

func (r *HistoryLogRepository) list(ctx context.Context, query string, key interface{}, limit, offset int) ([]*models.HistoryLog, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, key, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.HistoryLog, 0)
	for rows.Next() {
		log, err := scanHistoryLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history logs: %w", err)
	}
	return logs, nil
}

func scanHistoryLog(row rowScanner) (*models.HistoryLog, error) {
	log := &models.HistoryLog{}
	var feedback sql.NullString
	err := row.Scan(
		&log.ID,
		&log.UserID,
		&log.CharacterID,
		&log.Question,
		&log.Prompt,
		&log.Answer,
		&feedback,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if feedback.Valid {
		f := models.Feedback(feedback.String)
		log.Feedback = &f
	}
	return log, nil
}
