package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

// Repository хранит записи в файле SQLite.
//
// Таблица совместима со старой схемой websites(id, name, url, xpath, data):
// колонка status добавляется при старте, если её нет, а старые строки
// получают status='ok'.
type Repository struct {
	db             *sql.DB
	table          string
	commandTimeout time.Duration
	logger         *observability.Logger
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config, logger *observability.Logger) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Один писатель на файл: иначе SQLITE_BUSY при параллельных запросах
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		db:             db,
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

func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}

	hasStatus, err := r.hasColumn(ctx, "status")
	if err != nil {
		return err
	}
	if !hasStatus {
		r.logger.Info("Migrating legacy table: adding status column", "table", r.table)
		q := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN status TEXT NOT NULL DEFAULT 'ok'`, r.table)
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("add status column: %w", err)
		}
	}
	return nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT,
  url TEXT,
  xpath TEXT,
  data TEXT,
  status TEXT NOT NULL DEFAULT 'ok'
)`, table)
}

func (r *Repository) hasColumn(ctx context.Context, column string) (bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, r.table))
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", r.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// AppendAll сохраняет записи одной транзакцией
func (r *Repository) AppendAll(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (name, url, xpath, data, status) VALUES (?, ?, ?, ?, ?)`, r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Name, rec.URL, rec.Expression, rec.Value, rec.Status); err != nil {
			return fmt.Errorf("failed to insert record %d (%s): %w", i, rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (r *Repository) ReadAll(ctx context.Context) ([]storage.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, name, url, xpath, data, status FROM %s ORDER BY id`, r.table))
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		// Строки старой схемы могут содержать NULL
		var (
			rec                          storage.Record
			name, url, xpath, data, stat sql.NullString
		)
		if err := rows.Scan(&rec.ID, &name, &url, &xpath, &data, &stat); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Name, rec.URL, rec.Expression, rec.Value = name.String, url.String, xpath.String, data.String
		rec.Status = stat.String
		if rec.Status == "" {
			rec.Status = storage.StatusOK
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return n, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
