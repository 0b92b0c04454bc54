package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"sitewatch-parser/internal/aggregate"
	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/sheet"
	"sitewatch-parser/internal/storage"
)

// Service выполняет операции собеседника строго по одной: следующая
// начинается только после завершения предыдущей.
type Service struct {
	mu         sync.Mutex
	reader     *sheet.Reader
	processor  *Processor
	aggregator *aggregate.Aggregator
	repo       storage.Repository
	logger     *observability.Logger
}

func NewService(
	reader *sheet.Reader,
	processor *Processor,
	aggregator *aggregate.Aggregator,
	repo storage.Repository,
	logger *observability.Logger,
) *Service {
	return &Service{
		reader:     reader,
		processor:  processor,
		aggregator: aggregator,
		repo:       repo,
		logger:     logger,
	}
}

// Start возвращает приветствие.
func (s *Service) Start() string {
	return MsgStart
}

// Upload разбирает таблицу, обрабатывает каждую строку и возвращает по строке
// "name: value" на запись. Ошибки формата файла возвращаются текстом ответа,
// до обработки строк.
func (s *Service) Upload(ctx context.Context, session *Session, filename string, src io.Reader) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With("session", session.ID, "file", filename)

	if err := s.reader.CheckExtension(filename); err != nil {
		logger.Warn("Rejected upload", "error", err.Error())
		return MsgInvalidFile
	}

	specs, err := s.reader.Read(filename, src)
	if err != nil {
		logger.Warn("Failed to read upload", "error", err.Error())
		return fmt.Sprintf(MsgProcessFileErr, err)
	}

	// Ошибка сохранения уже лежит в upload.SaveErr и попадёт в ответ
	upload, _ := s.processor.Process(ctx, specs)
	session.Remember(upload)

	return renderUpload(upload)
}

// Data возвращает все сохранённые записи и несохранённые записи последней
// загрузки этой сессии.
func (s *Service) Data(ctx context.Context, session *Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.repo.ReadAll(ctx)
	if err != nil {
		s.logger.Error("Failed to read records", "session", session.ID, "error", err.Error())
		return "", fmt.Errorf("read records: %w", err)
	}
	return renderData(records, session.Unsaved()), nil
}

// AveragePrice возвращает средние цены по именам.
func (s *Service) AveragePrice(ctx context.Context, session *Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	averages, err := s.aggregator.Averages(ctx)
	if err != nil {
		s.logger.Error("Failed to compute averages", "session", session.ID, "error", err.Error())
		return "", err
	}
	if len(averages) > 0 {
		return renderAverages(averages), nil
	}

	// Пустое хранилище и хранилище без цен отвечают по-разному
	n, err := s.repo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("count records: %w", err)
	}
	if n == 0 {
		return MsgNoData, nil
	}
	return MsgNoAverages, nil
}
