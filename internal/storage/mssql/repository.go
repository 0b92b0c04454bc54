package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/storage"
)

type Repository struct {
	db             *sql.DB
	table          string
	commandTimeout time.Duration
	logger         *observability.Logger
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config, logger *observability.Logger) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	commandTimeout := cfg.CommandTimeout
	if commandTimeout <= 0 {
		commandTimeout = 5 * time.Second
	}

	return &Repository{
		db:             db,
		table:          cfg.Table,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`
		IF OBJECT_ID(N'dbo.%[1]s', N'U') IS NULL
		CREATE TABLE dbo.%[1]s (
			[id] BIGINT IDENTITY(1,1) PRIMARY KEY,
			[name] NVARCHAR(400) NULL,
			[url] NVARCHAR(2000) NULL,
			[xpath] NVARCHAR(2000) NULL,
			[data] NVARCHAR(MAX) NULL,
			[status] NVARCHAR(32) NOT NULL DEFAULT 'ok'
		);
	`, table)
}

func insertSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO dbo.%s ([name], [url], [xpath], [data], [status])
		VALUES (@Name, @URL, @XPath, @Data, @Status)
	`, table)
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, createTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// AppendAll сохраняет записи одной транзакцией
func (r *Repository) AppendAll(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertSQL(r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	for i, rec := range records {
		_, err := stmt.ExecContext(ctx,
			sql.Named("Name", rec.Name),
			sql.Named("URL", rec.URL),
			sql.Named("XPath", rec.Expression),
			sql.Named("Data", rec.Value),
			sql.Named("Status", rec.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %d (%s): %w", i, rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (r *Repository) ReadAll(ctx context.Context) ([]storage.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT [id], [name], [url], [xpath], [data], [status] FROM dbo.%s ORDER BY [id]`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var (
			rec                    storage.Record
			name, url, xpath, data sql.NullString
		)
		if err := rows.Scan(&rec.ID, &name, &url, &xpath, &data, &rec.Status); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Name, rec.URL, rec.Expression, rec.Value = name.String, url.String, xpath.String, data.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count получает количество сохранённых записей
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM dbo.%s`, r.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
