package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
)

// Document is one entry of an in-memory collection. Vectors maps a vector
// field name to its embedding.
type Document struct {
	ID       string               `json:"id"`
	Question string               `json:"question"`
	Text     string               `json:"text"`
	Vectors  map[string][]float32 `json:"vectors"`
}

// Store is an in-process vector store using brute-force inner product.
// It backs local development and tests.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{collections: make(map[string][]Document)}
}

// LoadSeedFile builds a store from a JSON file shaped as
// {"<collection>": [{"id", "question", "text", "vectors": {"<field>": [...]}}]}.
func LoadSeedFile(path string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed map[string][]Document
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	s := NewStore()
	for name, docs := range seed {
		s.CreateCollection(name)
		if err := s.Insert(name, docs...); err != nil {
			return nil, fmt.Errorf("collection %s: %w", name, err)
		}
	}
	return s, nil
}

// CreateCollection registers an empty collection. Existing collections are kept.
func (s *Store) CreateCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = nil
	}
}

// DropCollection removes a collection and its documents
func (s *Store) DropCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
}

// Insert appends documents to an existing collection. Every vector of a
// field must share the dimension of the vectors already stored under it.
func (s *Store) Insert(name string, docs ...Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %s does not exist", name)
	}
	dims := fieldDimensions(existing)
	for _, d := range docs {
		for field, v := range d.Vectors {
			if want, ok := dims[field]; ok && want != len(v) {
				return fmt.Errorf("document %s: %s has dimension %d, want %d", d.ID, field, len(v), want)
			}
			dims[field] = len(v)
		}
	}
	s.collections[name] = append(existing, docs...)
	return nil
}

// HasCollection implements rag.VectorStore
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// Search implements rag.VectorStore. Documents lacking the requested vector
// field are skipped.
func (s *Store) Search(ctx context.Context, req rag.SearchRequest) ([]rag.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Metric != "" && req.Metric != rag.MetricInnerProduct {
		return nil, fmt.Errorf("unsupported metric %q", req.Metric)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.collections[req.Collection]
	if !ok {
		return nil, services.NewKnowledgeNotFound(req.Collection, nil)
	}

	type hit struct {
		idx   int
		score float32
	}
	hits := make([]hit, 0, len(docs))
	for i, d := range docs {
		v, ok := d.Vectors[req.VectorField]
		if !ok {
			continue
		}
		if len(v) != len(req.Vector) {
			return nil, services.NewEncodingError(
				fmt.Sprintf("query vector has dimension %d, collection expects %d", len(req.Vector), len(v)), nil)
		}
		hits = append(hits, hit{idx: i, score: dot(v, req.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if req.TopK > 0 && len(hits) > req.TopK {
		hits = hits[:req.TopK]
	}

	records := make([]rag.Record, 0, len(hits))
	for _, h := range hits {
		d := docs[h.idx]
		records = append(records, rag.Record{
			Score: h.score,
			Fields: map[string]interface{}{
				rag.FieldID:       d.ID,
				rag.FieldQuestion: d.Question,
				rag.FieldText:     d.Text,
			},
		})
	}
	return records, nil
}

// Ping implements rag.VectorStore
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements rag.VectorStore
func (s *Store) Close() error {
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func fieldDimensions(docs []Document) map[string]int {
	dims := make(map[string]int)
	for _, d := range docs {
		for field, v := range d.Vectors {
			dims[field] = len(v)
		}
	}
	return dims
}
