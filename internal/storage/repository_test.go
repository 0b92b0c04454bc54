package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

type fakeRepo struct {
	schemaErr error
	closed    bool
}

func (f *fakeRepo) EnsureSchema(context.Context) error                { return f.schemaErr }
func (f *fakeRepo) AppendAll(context.Context, []storage.Record) error { return nil }
func (f *fakeRepo) ReadAll(context.Context) ([]storage.Record, error) { return nil, nil }
func (f *fakeRepo) Count(context.Context) (int, error)                { return 0, nil }
func (f *fakeRepo) Close() error                                      { f.closed = true; return nil }

func TestOpenUnknownDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Config{Driver: "nope", Table: "websites"}, observability.NewNopLogger())
	require.ErrorContains(t, err, "unsupported storage.driver=nope")
}

func TestOpenMissingDriver(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Config{Table: "websites"}, observability.NewNopLogger())
	require.Error(t, err)
}

func TestOpenClosesRepoWhenSchemaFails(t *testing.T) {
	repo := &fakeRepo{schemaErr: errors.New("no permission")}
	storage.Register("fake-schema-fail", func(context.Context, storage.Config, *observability.Logger) (storage.Repository, error) {
		return repo, nil
	})

	_, err := storage.Open(context.Background(), storage.Config{Driver: "fake-schema-fail", Table: "websites"}, observability.NewNopLogger())
	require.ErrorContains(t, err, "ensure schema")
	require.True(t, repo.closed)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	f := func(context.Context, storage.Config, *observability.Logger) (storage.Repository, error) {
		return &fakeRepo{}, nil
	}
	storage.Register("fake-dup", f)
	require.Panics(t, func() { storage.Register("fake-dup", f) })
}

func TestValidateTable(t *testing.T) {
	for _, ok := range []string{"websites", "_t", "Sites_2024"} {
		require.NoError(t, storage.ValidateTable(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "web sites", "t;DROP TABLE x", "a-b"} {
		require.Error(t, storage.ValidateTable(bad), bad)
	}
}

func TestRecordOK(t *testing.T) {
	require.True(t, storage.Record{Status: storage.StatusOK}.OK())
	require.False(t, storage.Record{Status: "not_found"}.OK())
}
