package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/character-chat/config"
	"github.com/upb/character-chat/internal/observability"
	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/middleware"
	"github.com/upb/character-chat/repositories"
	"github.com/upb/character-chat/repositories/postgres"
	"github.com/upb/character-chat/services/catalog"
	"github.com/upb/character-chat/services/chat"
	"github.com/upb/character-chat/services/embedding"
	"github.com/upb/character-chat/services/generation"
	"github.com/upb/character-chat/services/history"
	"github.com/upb/character-chat/services/knowledge"
	"github.com/upb/character-chat/services/knowledge/memory"
	"github.com/upb/character-chat/services/knowledge/milvus"
	"github.com/upb/character-chat/services/knowledge/pgvectorstore"
	"github.com/upb/character-chat/services/orchestrator"
	"github.com/upb/character-chat/services/prompt"
	"github.com/upb/character-chat/services/providers"
	"github.com/upb/character-chat/services/providers/openai"
	"github.com/upb/character-chat/services/retry"
)

const cacheCleanupInterval = time.Minute

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Users       repositories.UserRepository
	Characters  repositories.CharacterRepository
	HistoryLogs repositories.HistoryLogRepository
	TxManager   repositories.TransactionManager

	// Answer pipeline
	VectorStore     rag.VectorStore
	CollectionCache *knowledge.CollectionCache
	Resolver        *knowledge.Resolver
	Encoder         *embedding.Encoder
	Retriever       *knowledge.Retriever
	PromptBuilder   *prompt.Builder
	Provider        providers.Provider
	Generator       *generation.Client
	Orchestrator    *orchestrator.Orchestrator

	// Services
	History *history.Service
	Chat    *chat.Service
	Catalog *catalog.Service

	// Auth
	JWTValidator   *middleware.JWTValidator
	AuthMiddleware *middleware.AuthMiddleware

	cacheStop chan struct{}
	closed    bool
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initObservability(cfg)

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize the knowledge store
	if err := deps.initVectorStore(ctx, cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	// Initialize the answer pipeline
	if err := deps.initPipeline(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	// Initialize services
	if err := deps.initServices(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize auth (HS256 bearer tokens)
	if err := deps.initAuth(cfg); err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initObservability(cfg *config.Config) {
	if !cfg.Observability.TracingEnabled {
		observability.DisableTracing()
	}
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return
	}
	d.Metrics = observability.NewMetrics()
}

// initDatabase initializes the PostgreSQL database connection and factory
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	// Test the connection
	if err := d.DB.PingContext(ctx); err != nil {
		factory.Close()
		return fmt.Errorf("database ping failed: %w", err)
	}

	if cfg.Database.InitSchema {
		if err := d.DB.InitSchema(ctx); err != nil {
			factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Users = repos.Users
	d.Characters = repos.Characters
	d.HistoryLogs = repos.HistoryLogs
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

// initVectorStore connects the configured knowledge store
func (d *Dependencies) initVectorStore(ctx context.Context, cfg *config.Config) error {
	vs := cfg.VectorStore

	switch vs.Kind {
	case config.VectorStoreMilvus:
		store, err := milvus.New(ctx, milvus.Config{
			Address:  vs.MilvusAddress,
			Username: vs.MilvusUsername,
			Password: vs.MilvusPassword,
			DBName:   vs.MilvusDBName,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.VectorStore = store

	case config.VectorStorePgvector:
		if d.DB == nil {
			return fmt.Errorf("pgvector store requires a database connection")
		}
		store := pgvectorstore.NewStore(d.DB.DB)
		if cfg.Database.InitSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to initialize pgvector schema: %w", err)
			}
		}
		d.VectorStore = store

	case config.VectorStoreMemory:
		if vs.MemorySeedFile == "" {
			d.VectorStore = memory.NewStore()
			break
		}
		store, err := memory.LoadSeedFile(vs.MemorySeedFile)
		if err != nil {
			return err
		}
		d.VectorStore = store

	default:
		return fmt.Errorf("unknown vector store %q", vs.Kind)
	}

	d.Logger.Info("vector store initialized", zap.String("kind", vs.Kind))
	return nil
}

// initPipeline wires resolver, encoder, retriever, prompt builder and
// generation client into the orchestrator
func (d *Dependencies) initPipeline(cfg *config.Config) error {
	if cfg.Retrieval.CacheSize > 0 {
		d.CollectionCache = knowledge.NewCollectionCache(cfg.Retrieval.CacheSize, cfg.Retrieval.CacheTTL)
		d.cacheStop = make(chan struct{})
		go d.CollectionCache.StartCleanupWorker(cacheCleanupInterval, d.cacheStop)
	}

	d.Resolver = knowledge.NewResolver(d.VectorStore, d.CollectionCache, knowledge.ResolverOptions{
		Suffix:  cfg.Retrieval.CollectionSuffix,
		Timeout: cfg.VectorStore.Timeout,
	}, d.Metrics, d.Logger)
	d.Retriever = knowledge.NewRetriever(d.VectorStore, cfg.VectorStore.Timeout, d.Metrics, d.Logger)

	d.Encoder = embedding.NewEncoder(embedding.Config{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Timeout:   cfg.Embedding.Timeout,
		Dimension: cfg.Embedding.Dimension,
	}, d.Logger)

	// The template is read once; a missing file stops startup
	tmpl, err := prompt.LoadTemplate(cfg.Prompt.TemplatePath)
	if err != nil {
		return err
	}
	d.PromptBuilder = prompt.NewBuilder(tmpl, prompt.Options{
		QuestionLabel: cfg.Prompt.QuestionLabel,
		AnswerLabel:   cfg.Prompt.AnswerLabel,
	})

	d.Provider = openai.NewOpenAIAdapter(providers.ProviderConfig{
		APIKey:  cfg.Generation.APIKey,
		BaseURL: cfg.Generation.BaseURL,
		Timeout: cfg.Generation.Timeout,
	})
	d.Generator = generation.NewClient(d.Provider, cfg.Generation.Model, cfg.Generation.Timeout, d.Logger)

	d.Orchestrator = orchestrator.New(
		d.Resolver,
		d.Encoder,
		d.Retriever,
		d.PromptBuilder,
		d.Generator,
		orchestrator.Options{
			VectorField: cfg.Retrieval.VectorField,
			TopK:        cfg.Retrieval.TopK,
			Retry: retry.Policy{
				MaxAttempts:    cfg.Retry.MaxAttempts,
				InitialBackoff: cfg.Retry.InitialBackoff,
				MaxBackoff:     cfg.Retry.MaxBackoff,
			},
		},
		d.Metrics,
		d.Logger,
	)

	d.Logger.Info("answer pipeline initialized",
		zap.String("template", tmpl.Source()),
		zap.String("embedding_model", d.Encoder.Model()),
		zap.String("generation_model", d.Generator.Model()),
		zap.Int("top_k", cfg.Retrieval.TopK),
	)
	return nil
}

// initServices starts the history writers and builds the chat and catalog services
func (d *Dependencies) initServices(cfg *config.Config) error {
	d.History = history.NewService(d.HistoryLogs, d.Characters, d.TxManager, d.Logger, history.Config{
		BufferSize:   cfg.History.BufferSize,
		WorkerCount:  cfg.History.WorkerCount,
		WriteTimeout: cfg.History.WriteTimeout,
	})
	if err := d.History.Start(); err != nil {
		return err
	}

	d.Chat = chat.NewService(d.Users, d.Characters, d.Orchestrator, d.History, d.Logger)
	d.Catalog = catalog.NewService(d.Users, d.Characters, d.TxManager, d.Logger)
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	validator, err := middleware.NewJWTValidator(middleware.JWTConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return err
	}
	d.JWTValidator = validator
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies. Calling it twice is a no-op.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued history writes before the pool goes away
	if d.History != nil {
		timeout := d.Config.History.WriteTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
				timeout = remaining
			}
		}
		if err := d.History.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("history: %w", err))
		}
	}

	if d.cacheStop != nil {
		close(d.cacheStop)
		d.cacheStop = nil
	}

	if d.VectorStore != nil {
		if err := d.VectorStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("vector store: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	d.Logger.Info("dependencies shut down successfully")
	return nil
}
