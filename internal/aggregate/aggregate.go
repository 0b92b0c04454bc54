// Package aggregate считает среднюю цену по каждому имени сайта поверх всех
// сохранённых записей.
package aggregate

import (
	"context"
	"fmt"

	"sitewatch-parser/internal/normalize"
	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

// Average хранит среднюю цену одного имени.
type Average struct {
	Name    string
	Amount  float64
	Samples int
}

// Formatted возвращает сумму с двумя знаками после точки.
func (a Average) Formatted() string {
	return fmt.Sprintf("%.2f", a.Amount)
}

type Aggregator struct {
	repo       storage.Repository
	normalizer *normalize.Normalizer
	logger     *observability.Logger
}

func NewAggregator(repo storage.Repository, normalizer *normalize.Normalizer, logger *observability.Logger) *Aggregator {
	return &Aggregator{repo: repo, normalizer: normalizer, logger: logger}
}

// Averages читает все записи и возвращает средние в порядке первого появления
// имени. Имена без единой разобранной цены в результат не попадают.
func (a *Aggregator) Averages(ctx context.Context) ([]Average, error) {
	records, err := a.repo.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	averages, skipped := Compute(records, a.normalizer)
	a.logger.Debug("Averages computed",
		"records", len(records),
		"names", len(averages),
		"skipped", skipped,
	)
	return averages, nil
}

// Compute группирует записи по имени. Записи со статусом, отличным от ok,
// не разбираются вовсе, так что диагностическое сообщение не может стать
// ценой. skipped считает записи, не давшие цены.
func Compute(records []storage.Record, normalizer *normalize.Normalizer) (averages []Average, skipped int) {
	type acc struct {
		sum   float64
		count int
	}

	var order []string
	groups := make(map[string]*acc)

	for _, rec := range records {
		g, seen := groups[rec.Name]
		if !seen {
			g = &acc{}
			groups[rec.Name] = g
			order = append(order, rec.Name)
		}

		if !rec.OK() {
			skipped++
			continue
		}
		amount, ok := normalizer.ParsePrice(rec.Value)
		if !ok {
			skipped++
			continue
		}
		g.sum += amount
		g.count++
	}

	averages = make([]Average, 0, len(order))
	for _, name := range order {
		g := groups[name]
		if g.count == 0 {
			continue
		}
		averages = append(averages, Average{
			Name:    name,
			Amount:  g.sum / float64(g.count),
			Samples: g.count,
		})
	}
	return averages, skipped
}
