package storage

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"sitewatch-parser/internal/observability"
)

// StatusOK помечает запись с успешно извлечёнными данными.
const StatusOK = "ok"

// Record хранит результат одной попытки извлечения.
type Record struct {
	ID         int64  // идентификатор в БД, 0 до сохранения
	Name       string // имя сайта из таблицы
	URL        string
	Expression string // XPath или css: селектор
	Value      string // извлечённый текст или диагностическое сообщение
	Status     string // scraper.Cause.String()
}

// OK сообщает, содержит ли Value настоящие данные.
func (r Record) OK() bool {
	return r.Status == StatusOK
}

// Repository интерфейс для работы с хранилищем записей
type Repository interface {
	// EnsureSchema создаёт таблицу, если её нет
	EnsureSchema(ctx context.Context) error

	// AppendAll сохраняет пачку записей одной транзакцией: либо все, либо ни одной
	AppendAll(ctx context.Context, records []Record) error

	// ReadAll возвращает все записи; порядок не гарантируется
	ReadAll(ctx context.Context) ([]Record, error)

	// Count возвращает число сохранённых записей
	Count(ctx context.Context) (int, error)

	Close() error
}

type Config struct {
	Driver         string
	DSN            string
	Table          string
	CommandTimeout time.Duration
}

type Factory func(ctx context.Context, cfg Config, logger *observability.Logger) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register регистрирует бэкенд под именем драйвера; вызывается из init()
// пакета бэкенда. Повторная регистрация вызывает панику.
func Register(driver string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if driver == "" {
		panic("storage: Register called with empty driver")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[driver]; exists {
		panic(fmt.Sprintf("storage: factory already registered for driver=%q", driver))
	}
	factories[driver] = f
}

// Open создаёт репозиторий зарегистрированного бэкенда и гарантирует схему.
func Open(ctx context.Context, cfg Config, logger *observability.Logger) (Repository, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("storage: missing driver")
	}
	if err := ValidateTable(cfg.Table); err != nil {
		return nil, err
	}

	mu.RLock()
	f := factories[cfg.Driver]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.driver=%s", cfg.Driver)
	}

	repo, err := f(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, nil
}

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTable допускает только простые идентификаторы: имя таблицы
// подставляется в SQL напрямую.
func ValidateTable(name string) error {
	if !tableRe.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}
