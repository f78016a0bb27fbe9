package knowledge

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/character-chat/internal/observability"
	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
)

// DefaultCollectionSuffix is appended to a character short name to form its collection name.
const DefaultCollectionSuffix = "_info"

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	Suffix  string
	Timeout time.Duration
}

// Resolver maps a character short name to its knowledge collection.
type Resolver struct {
	store   rag.VectorStore
	cache   *CollectionCache // nil disables caching
	suffix  string
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewResolver creates a resolver backed by store. cache and metrics may be nil.
func NewResolver(store rag.VectorStore, cache *CollectionCache, opts ResolverOptions, metrics *observability.Metrics, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultCollectionSuffix
	}
	return &Resolver{
		store:   store,
		cache:   cache,
		suffix:  opts.Suffix,
		timeout: opts.Timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// CollectionName returns the collection name for a character short name.
// An empty suffix means DefaultCollectionSuffix.
func CollectionName(shortName, suffix string) string {
	if suffix == "" {
		suffix = DefaultCollectionSuffix
	}
	return shortName + suffix
}

// Resolve returns a handle to the character's collection.
// An unknown collection yields CharacterKnowledgeNotFound; a store failure
// yields RetrievalUnavailable.
func (r *Resolver) Resolve(ctx context.Context, shortName string) (rag.Collection, error) {
	shortName = strings.TrimSpace(shortName)
	name := CollectionName(shortName, r.suffix)
	if shortName == "" {
		return rag.Collection{}, services.NewKnowledgeNotFound(name, nil)
	}

	if r.cache != nil {
		coll, ok := r.cache.Get(shortName)
		r.recordCacheLookup(ok)
		if ok {
			return coll, nil
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	exists, err := r.store.HasCollection(ctx, name)
	if err != nil {
		r.logger.Warn("collection lookup failed",
			zap.String("collection", name),
			zap.Error(err),
		)
		return rag.Collection{}, storeError("collection lookup failed", err)
	}
	if !exists {
		return rag.Collection{}, services.NewKnowledgeNotFound(name, nil)
	}

	coll := rag.Collection{Name: name, ShortName: shortName}
	if r.cache != nil {
		r.cache.Set(shortName, coll)
	}
	return coll, nil
}

// Invalidate forgets a cached resolution so the next Resolve asks the store again
func (r *Resolver) Invalidate(shortName string) {
	if r.cache != nil {
		r.cache.Invalidate(strings.TrimSpace(shortName))
	}
}

func (r *Resolver) recordCacheLookup(hit bool) {
	if r.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.metrics.CollectionCacheLookups.WithLabelValues(result).Inc()
}

// storeError keeps domain errors raised by a backend and reports anything
// else, including deadlines, as RetrievalUnavailable.
func storeError(message string, err error) error {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		message += ": timed out"
	}
	return services.NewRetrievalUnavailable(message, err)
}
