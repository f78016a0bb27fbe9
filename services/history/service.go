package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/repositories"
	"github.com/upb/character-chat/services"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Config holds configuration for the background writer
type Config struct {
	BufferSize   int           // Size of the pending log channel
	WorkerCount  int           // Number of concurrent writers
	WriteTimeout time.Duration // Deadline for one background insert
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// Service stores and queries interaction history. Record writes
// synchronously; RecordAsync hands the entry to background workers.
type Service struct {
	logs       repositories.HistoryLogRepository
	characters repositories.CharacterRepository
	txMgr      repositories.TransactionManager
	logger     *zap.Logger

	pending      chan *models.HistoryLog
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	started      bool
	stopped      bool
	mu           sync.RWMutex
}

// NewService creates a history service. Call Start before RecordAsync.
func NewService(
	logs repositories.HistoryLogRepository,
	characters repositories.CharacterRepository,
	txMgr repositories.TransactionManager,
	logger *zap.Logger,
	config Config,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	return &Service{
		logs:         logs,
		characters:   characters,
		txMgr:        txMgr,
		logger:       logger,
		pending:      make(chan *models.HistoryLog, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
	}
}

// Start starts the background writers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("history service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started history writer",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))
	return nil
}

// Stop stops accepting background writes and waits for queued entries
// to be stored
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("history service not running")
	}
	s.stopped = true
	close(s.pending)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("history writer stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("history writer stop timeout after %v", timeout)
	}
}

// Record stores a log entry and returns its id
func (s *Service) Record(ctx context.Context, log *models.HistoryLog) (int64, error) {
	if err := s.logs.Insert(ctx, log); err != nil {
		s.logger.Error("failed to record history log",
			zap.Int64("character_id", log.CharacterID),
			zap.Error(err))
		return 0, services.WrapError(services.ErrorTypeInternal, "failed to record history", err)
	}
	return log.ID, nil
}

// RecordAsync queues a log entry without blocking. A full buffer drops
// the entry and reports an error.
func (s *Service) RecordAsync(log *models.HistoryLog) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("history service not running")
	}

	select {
	case s.pending <- log:
		return nil
	default:
		s.logger.Warn("history buffer full, dropping entry",
			zap.Int64("character_id", log.CharacterID),
			zap.String("user_id", log.UserID.String()))
		return fmt.Errorf("history buffer full")
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for log := range s.pending {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.logs.Insert(ctx, log); err != nil {
			s.logger.Error("failed to write history log",
				zap.Int("worker_id", id),
				zap.Int64("character_id", log.CharacterID),
				zap.Error(err))
		}
		cancel()
	}
}

// ListByUser returns a user's interactions, newest first
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.HistoryLog, error) {
	limit, offset = page(limit, offset)
	logs, err := s.logs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeInternal, "failed to list history", err)
	}
	return logs, nil
}

// ListByCharacter returns a character's interactions, newest first
func (s *Service) ListByCharacter(ctx context.Context, characterID int64, limit, offset int) ([]*models.HistoryLog, error) {
	if _, err := s.characters.GetByID(ctx, characterID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrCharacterNotFound
		}
		return nil, services.WrapError(services.ErrorTypeInternal, "failed to load character", err)
	}

	limit, offset = page(limit, offset)
	logs, err := s.logs.ListByCharacter(ctx, characterID, limit, offset)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeInternal, "failed to list history", err)
	}
	return logs, nil
}

// UpdateFeedback rates an answer. Users may rate only their own
// interactions; admins may rate any.
func (s *Service) UpdateFeedback(ctx context.Context, actorID uuid.UUID, admin bool, logID int64, feedback string) (*models.HistoryLog, error) {
	value, err := models.ParseFeedback(feedback)
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, err.Error(), services.ErrInvalidFeedback)
	}

	return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.HistoryLog, error) {
		log, err := s.logs.GetByID(ctx, logID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrHistoryLogNotFound
			}
			return nil, services.WrapError(services.ErrorTypeInternal, "failed to load history log", err)
		}
		if !admin && log.UserID != actorID {
			return nil, services.ErrForbidden
		}

		if err := s.logs.UpdateFeedback(ctx, logID, value); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrHistoryLogNotFound
			}
			return nil, services.WrapError(services.ErrorTypeInternal, "failed to update feedback", err)
		}

		log.WithFeedback(value)
		s.logger.Debug("feedback updated", zap.Int64("log_id", logID), zap.String("feedback", string(value)))
		return log, nil
	})
}

// Stats represents history writer statistics
type Stats struct {
	BufferSize  int
	Pending     int
	WorkerCount int
	Running     bool
}

// GetStats returns statistics about the background writer
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:  s.bufferSize,
		Pending:     len(s.pending),
		WorkerCount: s.workerCount,
		Running:     s.started && !s.stopped,
	}
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
