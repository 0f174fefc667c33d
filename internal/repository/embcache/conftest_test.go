package embcache

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

// mockKVStore is an in-memory store implementing the consumer interface.
type mockKVStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder, namespace string) (*CachedEmbedder, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{data: make(map[string][]byte)}
	return New(inner, ms, namespace, 0, nil, zap.NewNop()), ms
}
