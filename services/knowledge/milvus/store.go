package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/upb/character-chat/internal/rag"
)

// Config holds Milvus connection settings
type Config struct {
	Address  string
	Username string
	Password string
	DBName   string
}

// client is the subset of the Milvus SDK used by Store
type client interface {
	hasCollection(ctx context.Context, name string) (bool, error)
	search(ctx context.Context, opt milvusclient.SearchOption) ([]milvusclient.ResultSet, error)
	listCollections(ctx context.Context) ([]string, error)
	close(ctx context.Context) error
}

type sdkClient struct {
	cli *milvusclient.Client
}

func (c sdkClient) hasCollection(ctx context.Context, name string) (bool, error) {
	return c.cli.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

func (c sdkClient) search(ctx context.Context, opt milvusclient.SearchOption) ([]milvusclient.ResultSet, error) {
	return c.cli.Search(ctx, opt)
}

func (c sdkClient) listCollections(ctx context.Context) ([]string, error) {
	return c.cli.ListCollections(ctx, milvusclient.NewListCollectionOption())
}

func (c sdkClient) close(ctx context.Context) error {
	return c.cli.Close(ctx)
}

// Store is a rag.VectorStore backed by Milvus
type Store struct {
	client client
	logger *zap.Logger
}

// New connects to Milvus
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cli, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus at %s: %w", cfg.Address, err)
	}

	logger.Info("connected to milvus", zap.String("address", cfg.Address))
	return newStore(sdkClient{cli: cli}, logger), nil
}

func newStore(c client, logger *zap.Logger) *Store {
	return &Store{client: c, logger: logger}
}

// HasCollection implements rag.VectorStore
func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	return s.client.hasCollection(ctx, name)
}

// Search implements rag.VectorStore. Hits whose payload columns cannot be
// read are returned with the fields that were readable; shape validation
// happens in the caller.
func (s *Store) Search(ctx context.Context, req rag.SearchRequest) ([]rag.Record, error) {
	opt := milvusclient.NewSearchOption(req.Collection, req.TopK, []entity.Vector{entity.FloatVector(req.Vector)}).
		WithANNSField(req.VectorField).
		WithOutputFields(req.OutputFields...)
	if req.Metric != "" {
		opt = opt.WithSearchParam("metric_type", string(req.Metric))
	}

	results, err := s.client.search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("milvus search on %s: %w", req.Collection, err)
	}

	records := make([]rag.Record, 0, req.TopK)
	for _, rs := range results {
		if rs.Err != nil {
			return nil, fmt.Errorf("milvus search on %s: %w", req.Collection, rs.Err)
		}
		for i := 0; i < rs.ResultCount; i++ {
			records = append(records, s.record(rs, i, req.OutputFields))
		}
	}
	return records, nil
}

func (s *Store) record(rs milvusclient.ResultSet, i int, outputFields []string) rag.Record {
	fields := make(map[string]interface{}, len(outputFields))
	for _, name := range outputFields {
		col := rs.GetColumn(name)
		if col == nil {
			continue
		}
		v, err := col.Get(i)
		if err != nil {
			s.logger.Debug("unreadable milvus column", zap.String("field", name), zap.Error(err))
			continue
		}
		fields[name] = v
	}

	// primary keys are not always echoed as output fields
	if _, ok := fields[rag.FieldID]; !ok && rs.IDs != nil {
		if v, err := rs.IDs.Get(i); err == nil {
			fields[rag.FieldID] = v
		}
	}

	var score float32
	if i < len(rs.Scores) {
		score = rs.Scores[i]
	}
	return rag.Record{Score: score, Fields: fields}
}

// Ping implements rag.VectorStore
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.listCollections(ctx)
	return err
}

// Close implements rag.VectorStore
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.close(ctx)
}
