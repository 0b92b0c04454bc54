package app

import (
	"context"
	"fmt"
	"time"

	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/scraper"
	"sitewatch-parser/internal/storage"
)

// Extractor превращает URL и выражение в результат.
type Extractor interface {
	Extract(ctx context.Context, url, expression string) scraper.Result
}

type Processor struct {
	extractor Extractor
	repo      storage.Repository
	logger    *observability.Logger
}

func NewProcessor(extractor Extractor, repo storage.Repository, logger *observability.Logger) *Processor {
	return &Processor{
		extractor: extractor,
		repo:      repo,
		logger:    logger,
	}
}

// Upload описывает итог обработки одной загруженной таблицы.
type Upload struct {
	Records  []storage.Record // по одной на строку, в порядке строк
	OK       int              // записей со статусом ok
	SaveErr  error            // ошибка сохранения, если была
	Duration time.Duration
}

// Saved сообщает, попали ли записи в хранилище.
func (u *Upload) Saved() bool {
	return u.SaveErr == nil
}

// Process обрабатывает строки последовательно, в порядке входа, и сохраняет
// весь пакет одним AppendAll. Upload возвращается всегда; ошибка означает,
// что сохранить записи не удалось.
func (p *Processor) Process(ctx context.Context, specs []scraper.SiteSpec) (*Upload, error) {
	started := time.Now()
	upload := &Upload{Records: make([]storage.Record, 0, len(specs))}

	p.logger.Info("Starting upload processing", "rows", len(specs))

	for i, spec := range specs {
		p.logger.Debug("Processing row",
			"row", i+1,
			"line", spec.Line,
			"name", spec.Name,
			"url", spec.URL,
		)

		res := p.extractor.Extract(ctx, spec.URL, spec.Expression)
		if res.OK() {
			upload.OK++
		} else {
			p.logger.Info("Row produced no data",
				"line", spec.Line,
				"name", spec.Name,
				"cause", res.Cause.String(),
			)
		}
		upload.Records = append(upload.Records, res.Record(spec))
	}

	if err := p.repo.AppendAll(ctx, upload.Records); err != nil {
		upload.SaveErr = fmt.Errorf("save %d records: %w", len(upload.Records), err)
		p.logger.Error("Failed to save records",
			"records", len(upload.Records),
			"error", err.Error(),
		)
	}
	upload.Duration = time.Since(started)

	p.logger.Info("Upload processing completed",
		"rows", len(specs),
		"ok", upload.OK,
		"saved", upload.Saved(),
		"duration_ms", upload.Duration.Milliseconds(),
	)

	return upload, upload.SaveErr
}
