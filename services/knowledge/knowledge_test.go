package knowledge

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/upb/character-chat/internal/rag"
)

// mockStore is a mock implementation of rag.VectorStore
type mockStore struct {
	mock.Mock
}

func (m *mockStore) HasCollection(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Search(ctx context.Context, req rag.SearchRequest) ([]rag.Record, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.Record), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// slowStore blocks until the context is done
type slowStore struct{}

func (slowStore) HasCollection(ctx context.Context, name string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func (slowStore) Search(ctx context.Context, req rag.SearchRequest) ([]rag.Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return nil, errors.New("deadline not applied")
	}
}

func (slowStore) Ping(ctx context.Context) error { return nil }
func (slowStore) Close() error                   { return nil }

func record(id string, score float32) rag.Record {
	return rag.Record{
		Score: score,
		Fields: map[string]interface{}{
			rag.FieldID:       id,
			rag.FieldQuestion: "q-" + id,
			rag.FieldText:     "a-" + id,
		},
	}
}
