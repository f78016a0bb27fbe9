package pgvectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/upb/character-chat/internal/rag"
)

// Schema creates the tables this store reads. Each vector field of a
// collection is a vector column on knowledge_documents.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS knowledge_collections (
    name       TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS knowledge_documents (
    collection           TEXT NOT NULL REFERENCES knowledge_collections(name) ON DELETE CASCADE,
    id                   TEXT NOT NULL,
    question             TEXT,
    text                 TEXT,
    question_text_vector vector,
    PRIMARY KEY (collection, id)
);
`

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a rag.VectorStore backed by PostgreSQL with the pgvector extension
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the extension and tables if they are missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create knowledge schema: %w", err)
	}
	return nil
}

// HasCollection implements rag.VectorStore
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM knowledge_collections WHERE name = $1)`
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return exists, nil
}

// Search implements rag.VectorStore using the negative inner product
// operator, so the score is the inner product itself.
func (s *Store) Search(ctx context.Context, req rag.SearchRequest) ([]rag.Record, error) {
	if req.Metric != "" && req.Metric != rag.MetricInnerProduct {
		return nil, fmt.Errorf("unsupported metric %q", req.Metric)
	}
	if !identifierPattern.MatchString(req.VectorField) {
		return nil, fmt.Errorf("invalid vector field %q", req.VectorField)
	}
	column := pq.QuoteIdentifier(req.VectorField)

	query := fmt.Sprintf(`
		SELECT id, question, text, (%[1]s <#> $1) * -1 AS score
		FROM knowledge_documents
		WHERE collection = $2 AND %[1]s IS NOT NULL
		ORDER BY %[1]s <#> $1
		LIMIT $3
	`, column)

	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(req.Vector), req.Collection, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search on %s: %w", req.Collection, err)
	}
	defer rows.Close()

	records := make([]rag.Record, 0, req.TopK)
	for rows.Next() {
		var (
			id             string
			question, text sql.NullString
			score          float64
		)
		if err := rows.Scan(&id, &question, &text, &score); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge document: %w", err)
		}

		fields := map[string]interface{}{rag.FieldID: id}
		if question.Valid {
			fields[rag.FieldQuestion] = question.String
		}
		if text.Valid {
			fields[rag.FieldText] = text.String
		}
		records = append(records, rag.Record{Score: float32(score), Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge documents: %w", err)
	}
	return records, nil
}

// Ping implements rag.VectorStore
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the database handle is owned by the caller.
func (s *Store) Close() error {
	return nil
}
