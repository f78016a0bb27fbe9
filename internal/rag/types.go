package rag

import (
	"context"
	"fmt"
)

// Payload field names requested from every collection.
const (
	FieldID       = "id"
	FieldQuestion = "question"
	FieldText     = "text"
)

// OutputFields lists the payload fields a search must return.
var OutputFields = []string{FieldID, FieldText, FieldQuestion}

// Metric is a vector similarity metric.
type Metric string

const (
	MetricInnerProduct Metric = "IP"
)

// QueryVector is the embedding of a user question. It is request scoped.
type QueryVector []float32

// ReferenceDocument is one indexed Q&A unit of a character's knowledge base.
type ReferenceDocument struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Text     string `json:"text"`
}

// ScoredDocument is a ReferenceDocument with its similarity to the query.
type ScoredDocument struct {
	ReferenceDocument
	Score float32 `json:"score"`
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []ScoredDocument

// Documents returns the documents without scores, preserving order.
func (r RetrievalResult) Documents() []ReferenceDocument {
	docs := make([]ReferenceDocument, len(r))
	for i, d := range r {
		docs[i] = d.ReferenceDocument
	}
	return docs
}

// Collection is a resolved handle to a character's knowledge collection.
type Collection struct {
	Name      string
	ShortName string
}

// SearchRequest describes one similarity search against a collection.
type SearchRequest struct {
	Collection   string
	VectorField  string
	Vector       QueryVector
	TopK         int
	Metric       Metric
	OutputFields []string
}

// Record is a raw search hit as returned by a storage backend.
// Fields holds whatever payload the backend could read; it is not trusted
// to contain every requested field.
type Record struct {
	Score  float32
	Fields map[string]interface{}
}

// VectorStore is implemented by every knowledge storage backend.
// Implementations must be safe for concurrent use.
type VectorStore interface {
	HasCollection(ctx context.Context, name string) (bool, error)
	Search(ctx context.Context, req SearchRequest) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// MissingFieldError reports a record that lacks a required payload field.
type MissingFieldError struct {
	Field string
	ID    string
}

func (e *MissingFieldError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record missing field %q", e.Field)
	}
	return fmt.Sprintf("record %s missing field %q", e.ID, e.Field)
}

// DocumentFromRecord converts a raw record into a ReferenceDocument.
// Records without an id, question or text payload are rejected.
func DocumentFromRecord(rec Record) (ScoredDocument, error) {
	rawID, ok := rec.Fields[FieldID]
	if !ok || rawID == nil {
		return ScoredDocument{}, &MissingFieldError{Field: FieldID}
	}
	id := fmt.Sprint(rawID)

	question, ok := stringField(rec.Fields, FieldQuestion)
	if !ok {
		return ScoredDocument{}, &MissingFieldError{Field: FieldQuestion, ID: id}
	}
	text, ok := stringField(rec.Fields, FieldText)
	if !ok {
		return ScoredDocument{}, &MissingFieldError{Field: FieldText, ID: id}
	}

	return ScoredDocument{
		ReferenceDocument: ReferenceDocument{ID: id, Question: question, Text: text},
		Score:             rec.Score,
	}, nil
}

func stringField(fields map[string]interface{}, key string) (string, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case *string:
		if s == nil {
			return "", false
		}
		return *s, true
	default:
		return "", false
	}
}
