package orchestrator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/upb/character-chat/internal/observability"
	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
	"github.com/upb/character-chat/services/retry"
)

// Resolver maps a character short name to its knowledge collection.
// Invalidate drops any remembered resolution for shortName.
type Resolver interface {
	Resolve(ctx context.Context, shortName string) (rag.Collection, error)
	Invalidate(shortName string)
}

// Encoder embeds text
type Encoder interface {
	Encode(ctx context.Context, text string) (rag.QueryVector, error)
}

// Retriever searches a collection
type Retriever interface {
	Search(ctx context.Context, field string, vector rag.QueryVector, coll rag.Collection, topK int) (rag.RetrievalResult, error)
}

// PromptBuilder renders the generation prompt
type PromptBuilder interface {
	Build(question string, docs []rag.ReferenceDocument, characterName string) string
}

// Generator completes a prompt
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures retrieval and retries
type Options struct {
	VectorField string
	TopK        int
	Retry       retry.Policy
}

// Orchestrator sequences resolve, encode, retrieve, build and generate for
// one question. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	resolver  Resolver
	encoder   Encoder
	retriever Retriever
	builder   PromptBuilder
	generator Generator

	opts    Options
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates an orchestrator. metrics may be nil.
func New(
	resolver Resolver,
	encoder Encoder,
	retriever Retriever,
	builder PromptBuilder,
	generator Generator,
	opts Options,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.VectorField == "" {
		opts.VectorField = "question_text_vector"
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = retry.NoRetry()
	}
	return &Orchestrator{
		resolver:  resolver,
		encoder:   encoder,
		retriever: retriever,
		builder:   builder,
		generator: generator,
		opts:      opts,
		metrics:   metrics,
		tracer:    observability.Tracer(),
		logger:    logger,
	}
}

// Result is the outcome of one pipeline run
type Result struct {
	Prompt    string
	Answer    string
	Documents rag.RetrievalResult
}

// RAG answers question in the voice of the character and returns the
// rendered prompt with the answer. Errors from any stage are returned
// unchanged and nothing partial is returned with them.
func (o *Orchestrator) RAG(ctx context.Context, question, shortName, characterName string) (string, string, error) {
	res, err := o.Run(ctx, question, shortName, characterName)
	if err != nil {
		return "", "", err
	}
	return res.Prompt, res.Answer, nil
}

// Run is RAG with the retrieved documents included in the result
func (o *Orchestrator) Run(ctx context.Context, question, shortName, characterName string) (*Result, error) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "rag.run", trace.WithAttributes(
		attribute.String("character.short_name", shortName),
	))

	res, err := o.run(ctx, question, shortName, characterName)

	observability.EndSpan(span, err)
	o.recordOutcome(err)
	if err != nil {
		o.logger.Warn("rag pipeline failed",
			zap.String("short_name", shortName),
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return nil, err
	}

	o.logger.Info("rag pipeline completed",
		zap.String("short_name", shortName),
		zap.Int("documents", len(res.Documents)),
		zap.Duration("duration", time.Since(started)),
	)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, question, shortName, characterName string) (*Result, error) {
	// Step 1: resolve the character's collection
	var coll rag.Collection
	err := o.stage(ctx, observability.StageResolve, func(ctx context.Context) error {
		var err error
		coll, err = o.resolver.Resolve(ctx, shortName)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Step 2: embed the question
	var vector rag.QueryVector
	err = o.stage(ctx, observability.StageEncode, func(ctx context.Context) error {
		var err error
		vector, err = o.encoder.Encode(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Step 3: top-K inner product search
	var docs rag.RetrievalResult
	err = o.stage(ctx, observability.StageRetrieve, func(ctx context.Context) error {
		return o.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			docs, err = o.retriever.Search(ctx, o.opts.VectorField, vector, coll, o.opts.TopK)
			return err
		})
	})
	if err != nil {
		if services.IsKnowledgeNotFoundError(err) {
			// the collection went away after it was resolved
			o.resolver.Invalidate(shortName)
		}
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.RetrievedDocuments.Observe(float64(len(docs)))
	}

	// Step 4: render the prompt
	var prompt string
	o.measure(ctx, observability.StageBuild, func() {
		prompt = o.builder.Build(question, docs.Documents(), characterName)
	})

	// Step 5: generate the answer
	var answer string
	err = o.stage(ctx, observability.StageGenerate, func(ctx context.Context) error {
		return o.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			answer, err = o.generator.Complete(ctx, prompt)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return &Result{Prompt: prompt, Answer: answer, Documents: docs}, nil
}

// stage runs fn inside a span and records its latency
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, o.tracer, name)
	err := fn(ctx)
	observability.EndSpan(span, err)
	o.metrics.ObserveStage(name, started, err)
	return err
}

// measure is stage for steps that cannot fail
func (o *Orchestrator) measure(ctx context.Context, name string, fn func()) {
	started := time.Now()
	_, span := observability.StartSpan(ctx, o.tracer, name)
	fn()
	observability.EndSpan(span, nil)
	o.metrics.ObserveStage(name, started, nil)
}

func (o *Orchestrator) recordOutcome(err error) {
	if o.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(services.GetErrorType(err))
		if outcome == "" {
			outcome = "unknown"
		}
	}
	o.metrics.RAGRequests.WithLabelValues(outcome).Inc()
}
