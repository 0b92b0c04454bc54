package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

// insertColumns задаёт порядок колонок в INSERT и в аргументах buildInsertSQL.
var insertColumns = []string{"name", "url", "xpath", "data", "status"}

// maxParams ограничивает число параметров одного запроса в протоколе Postgres.
const maxParams = 65535

// batchSize задаёт, сколько записей помещается в один INSERT.
var batchSize = maxParams / len(insertColumns)

type Repository struct {
	pool           *pgxpool.Pool
	table          string
	commandTimeout time.Duration
	logger         *observability.Logger
}

func init() {
	storage.Register("postgres", New)
}

func New(ctx context.Context, cfg storage.Config, logger *observability.Logger) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Repository{
		pool:           pool,
		table:          cfg.Table,
		commandTimeout: cfg.CommandTimeout,
		logger:         logger,
	}, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.commandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.commandTimeout)
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  name TEXT,
  url TEXT,
  xpath TEXT,
  data TEXT,
  status TEXT NOT NULL DEFAULT 'ok'
)`, table)
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.pool.Exec(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	// Таблица могла быть создана без status
	alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'ok'`, r.table)
	if _, err := r.pool.Exec(ctx, alter); err != nil {
		return fmt.Errorf("add status column: %w", err)
	}
	return nil
}

// buildInsertSQL строит один многострочный INSERT с $n плейсхолдерами.
// Чистая функция, проверяется без базы.
func buildInsertSQL(table string, records []storage.Record) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(insertColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(records)*len(insertColumns))
	p := 1
	for i, rec := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range insertColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			p++
		}
		b.WriteString(")")
		args = append(args, rec.Name, rec.URL, rec.Expression, rec.Value, rec.Status)
	}
	return b.String(), args
}

// chunks режет записи на части не длиннее size, сохраняя порядок.
func chunks(records []storage.Record, size int) [][]storage.Record {
	var out [][]storage.Record
	for len(records) > size {
		out = append(out, records[:size])
		records = records[size:]
	}
	if len(records) > 0 {
		out = append(out, records)
	}
	return out
}

// AppendAll сохраняет записи одной транзакцией, частями по batchSize
func (r *Repository) AppendAll(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, chunk := range chunks(records, batchSize) {
		query, args := buildInsertSQL(r.table, chunk)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert %d records: %w", len(chunk), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (r *Repository) ReadAll(ctx context.Context) ([]storage.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, COALESCE(name, ''), COALESCE(url, ''), COALESCE(xpath, ''), COALESCE(data, ''), status FROM %s ORDER BY id`,
		r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.Record, error) {
		var rec storage.Record
		err := row.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Expression, &rec.Value, &rec.Status)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	return out, nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return n, nil
}

// Close закрывает пул соединений
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
