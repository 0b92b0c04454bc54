package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/normalize"
	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

type memRepo struct {
	records []storage.Record
	err     error
}

func (m *memRepo) EnsureSchema(context.Context) error { return nil }
func (m *memRepo) AppendAll(_ context.Context, recs []storage.Record) error {
	m.records = append(m.records, recs...)
	return nil
}
func (m *memRepo) ReadAll(context.Context) ([]storage.Record, error) { return m.records, m.err }
func (m *memRepo) Count(context.Context) (int, error)                { return len(m.records), m.err }
func (m *memRepo) Close() error                                      { return nil }

func ok(name, value string) storage.Record {
	return storage.Record{Name: name, Value: value, Status: storage.StatusOK}
}

func newAggregator(records ...storage.Record) *Aggregator {
	return NewAggregator(&memRepo{records: records}, normalize.NewNormalizer(config.Default().Normalize), observability.NewNopLogger())
}

func TestAveragesMixedCurrenciesAndDiagnostics(t *testing.T) {
	a := newAggregator(
		ok("A", "$10.00"),
		storage.Record{Name: "A", Value: "Data not found", Status: "not_found"},
		ok("A", "€12.50"),
	)

	got, err := a.Averages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "A", got[0].Name)
	require.InDelta(t, 11.25, got[0].Amount, 1e-9)
	require.Equal(t, 2, got[0].Samples)
	require.Equal(t, "11.25", got[0].Formatted())
}

func TestAveragesEmptyStore(t *testing.T) {
	got, err := newAggregator().Averages(context.Background())
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAveragesOmitsNamesWithoutSamples(t *testing.T) {
	a := newAggregator(
		ok("B", "out of stock"),
		ok("C", "£3"),
		ok("B", "1,299.00"),
		ok("D", "₽ 100 "),
	)

	got, err := a.Averages(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Average{
		{Name: "C", Amount: 3, Samples: 1},
		{Name: "D", Amount: 100, Samples: 1},
	}, got)
}

func TestAveragesFirstSeenOrder(t *testing.T) {
	a := newAggregator(ok("z", "1"), ok("a", "2"), ok("z", "3"), ok("m", "4"))

	got, err := a.Averages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "z", got[0].Name)
	require.InDelta(t, 2.0, got[0].Amount, 1e-9)
	require.Equal(t, "a", got[1].Name)
	require.Equal(t, "m", got[2].Name)
}

func TestAveragesSkipsFailedRecordsThatLookNumeric(t *testing.T) {
	// Сообщение об ошибке из одного числа не должно считаться ценой
	a := newAggregator(
		ok("A", "5"),
		storage.Record{Name: "A", Value: "404", Status: "status"},
	)

	got, err := a.Averages(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDelta(t, 5.0, got[0].Amount, 1e-9)
}

func TestAveragesReadError(t *testing.T) {
	a := NewAggregator(&memRepo{err: errors.New("db down")}, normalize.NewNormalizer(config.NormalizeConfig{}), observability.NewNopLogger())

	_, err := a.Averages(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestComputeCountsSkipped(t *testing.T) {
	n := normalize.NewNormalizer(config.NormalizeConfig{})
	_, skipped := Compute([]storage.Record{ok("A", "1"), ok("A", "x"), {Name: "A", Status: "network"}}, n)
	require.Equal(t, 2, skipped)
}
