package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/upb/character-chat/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an already open pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Schema holds the application tables. Knowledge tables for the pgvector
// backend are created separately by that backend.
const Schema = `
	CREATE TABLE IF NOT EXISTS user_accounts (
		uid UUID PRIMARY KEY,
		username VARCHAR(255) NOT NULL,
		name VARCHAR(255),
		email VARCHAR(255) NOT NULL UNIQUE,
		role VARCHAR(50) NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS characters (
		id BIGSERIAL PRIMARY KEY,
		short_name VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		background_image TEXT,
		profile_image TEXT,
		original_price DOUBLE PRECISION,
		new_price DOUBLE PRECISION,
		percentage_discount DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS user_character (
		user_uid UUID NOT NULL REFERENCES user_accounts(uid) ON DELETE CASCADE,
		character_id BIGINT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		PRIMARY KEY (user_uid, character_id)
	);

	DO $$ BEGIN
		CREATE TYPE feedback_enum AS ENUM ('like', 'dislike');
	EXCEPTION
		WHEN duplicate_object THEN NULL;
	END $$;

	CREATE TABLE IF NOT EXISTS history_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES user_accounts(uid) ON DELETE CASCADE,
		character_id BIGINT NOT NULL REFERENCES characters(id) ON DELETE CASCADE,
		question TEXT NOT NULL,
		prompt TEXT NOT NULL,
		answer TEXT NOT NULL,
		feedback feedback_enum,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_history_logs_user_id ON history_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_history_logs_character_id ON history_logs(character_id);
	CREATE INDEX IF NOT EXISTS idx_history_logs_created_at ON history_logs(created_at);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
