package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/vecbot/internal/db"
	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/schema"
)

// memIndexes stores schemas in memory, mimicking create-or-update semantics.
type memIndexes struct {
	stored   map[string]*schema.Index
	getErr   error
	putErr   error
	putCalls int
}

func newMemIndexes() *memIndexes { return &memIndexes{stored: map[string]*schema.Index{}} }

func (m *memIndexes) CreateOrUpdateIndex(_ context.Context, idx *schema.Index) error {
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	cp := *idx
	m.stored[idx.Name] = &cp
	return nil
}

func (m *memIndexes) GetIndex(_ context.Context, name string) (*schema.Index, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	idx, ok := m.stored[name]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	return idx, nil
}

func gatesSchema() *schema.Builder {
	return schema.NewIndex("gates").
		Key("GateName").
		FilterableText("Terminal").
		HNSW("gate-config", 4, 400, 500, schema.Cosine).
		Vector("GateNameVector", 1536, "gate-config").
		Vector("TerminalVector", 1536, "gate-config")
}

func TestProvision_Idempotent(t *testing.T) {
	store := newMemIndexes()
	svc := New(store, zap.NewNop())
	idx := gatesSchema().MustBuild()

	require.NoError(t, svc.Provision(context.Background(), idx))
	first, err := svc.Describe(context.Background(), "gates")
	require.NoError(t, err)

	require.NoError(t, svc.Provision(context.Background(), idx))
	second, err := svc.Describe(context.Background(), "gates")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, store.putCalls)
}

func TestProvision_WarnsOnDroppedFields(t *testing.T) {
	store := newMemIndexes()
	core, logs := observer.New(zap.WarnLevel)
	svc := New(store, zap.New(core))

	require.NoError(t, svc.Provision(context.Background(), gatesSchema().Text("Notes").MustBuild()))
	require.NoError(t, svc.Provision(context.Background(), gatesSchema().MustBuild()))

	entries := logs.FilterMessage("Index update drops existing fields").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"Notes"}, entries[0].ContextMap()["fields"])

	stored, err := svc.Describe(context.Background(), "gates")
	require.NoError(t, err)
	_, ok := stored.FieldByName("Notes")
	assert.False(t, ok, "update proceeds despite the warning")
}

func TestProvision_InvalidSchema(t *testing.T) {
	store := newMemIndexes()
	svc := New(store, zap.NewNop())

	// No key field.
	idx := &schema.Index{Name: "gates", Fields: []schema.Field{{Name: "title", Type: schema.String}}}

	err := svc.Provision(context.Background(), idx)
	assert.ErrorIs(t, err, domain.ErrProvision)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, store.putCalls)

	assert.ErrorIs(t, svc.Provision(context.Background(), nil), domain.ErrInvalidInput)
}

func TestProvision_BackendFailure(t *testing.T) {
	cause := &db.Error{Op: db.OpPutIndex, Err: errors.New("403 forbidden")}
	store := newMemIndexes()
	store.putErr = cause
	svc := New(store, zap.NewNop())

	err := svc.Provision(context.Background(), gatesSchema().MustBuild())
	assert.ErrorIs(t, err, domain.ErrProvision)
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.OpPutIndex, dbErr.Op)
}

func TestProvision_DriftReadFailureStillWrites(t *testing.T) {
	store := newMemIndexes()
	store.getErr = errors.New("timeout")
	svc := New(store, zap.NewNop())

	require.NoError(t, svc.Provision(context.Background(), gatesSchema().MustBuild()))
	assert.Equal(t, 1, store.putCalls)
}

func TestDescribe_NotFound(t *testing.T) {
	svc := New(newMemIndexes(), zap.NewNop())
	_, err := svc.Describe(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}
