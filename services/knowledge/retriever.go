package knowledge

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/upb/character-chat/internal/observability"
	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
)

const (
	// DefaultTopK is the number of reference documents returned per search
	DefaultTopK = 5
	// DefaultVectorField holds embeddings of the indexed questions
	DefaultVectorField = "question_text_vector"
)

// Retriever runs inner product searches against resolved collections and
// returns fixed-shape reference documents.
type Retriever struct {
	store   rag.VectorStore
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRetriever creates a retriever. timeout bounds each search; zero means
// the caller's context alone applies. metrics may be nil.
func NewRetriever(store rag.VectorStore, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, timeout: timeout, metrics: metrics, logger: logger}
}

// Search returns at most topK documents from coll ordered by descending
// score. Equal scores are ordered by id. An empty collection is not an error.
func (r *Retriever) Search(ctx context.Context, field string, vector rag.QueryVector, coll rag.Collection, topK int) (rag.RetrievalResult, error) {
	if len(vector) == 0 {
		return nil, services.NewEncodingError("query vector is empty", nil)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if field == "" {
		field = DefaultVectorField
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	records, err := r.store.Search(ctx, rag.SearchRequest{
		Collection:   coll.Name,
		VectorField:  field,
		Vector:       vector,
		TopK:         topK,
		Metric:       rag.MetricInnerProduct,
		OutputFields: rag.OutputFields,
	})
	if err != nil {
		r.logger.Warn("vector search failed",
			zap.String("collection", coll.Name),
			zap.Error(err),
		)
		if r.collectionDropped(ctx, coll.Name, err) {
			return nil, services.NewKnowledgeNotFound(coll.Name, err)
		}
		return nil, storeError("vector search failed", err)
	}

	result := make(rag.RetrievalResult, 0, len(records))
	for _, rec := range records {
		doc, err := rag.DocumentFromRecord(rec)
		if err != nil {
			var missing *rag.MissingFieldError
			if errors.As(err, &missing) {
				r.logger.Warn("dropping malformed reference document",
					zap.String("collection", coll.Name),
					zap.String("id", missing.ID),
					zap.String("field", missing.Field),
				)
				if r.metrics != nil {
					r.metrics.DroppedDocuments.Inc()
				}
				continue
			}
			return nil, err
		}
		result = append(result, doc)
	}

	sortByScore(result)
	if len(result) > topK {
		result = result[:topK]
	}
	return result, nil
}

// collectionDropped reports whether a failed search hit a collection that no
// longer exists. Resolved handles can outlive their collection while cached.
func (r *Retriever) collectionDropped(ctx context.Context, name string, searchErr error) bool {
	var domainErr *services.DomainError
	if errors.As(searchErr, &domainErr) || ctx.Err() != nil {
		return false
	}
	exists, err := r.store.HasCollection(ctx, name)
	return err == nil && !exists
}

func sortByScore(result rag.RetrievalResult) {
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].ID < result[j].ID
	})
}
