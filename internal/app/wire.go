package app

import (
	"sitewatch-parser/internal/aggregate"
	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/fetcher"
	"sitewatch-parser/internal/normalize"
	"sitewatch-parser/internal/observability"
	"sitewatch-parser/internal/scraper"
	"sitewatch-parser/internal/sheet"
	"sitewatch-parser/internal/storage"
)

// Build собирает Service из конфигурации, источника страниц и хранилища.
// Владение source и repo остаётся у вызывающего.
func Build(cfg *config.Config, source fetcher.PageSource, repo storage.Repository, logger *observability.Logger) *Service {
	normalizer := normalize.NewNormalizer(cfg.Normalize)
	extractor := scraper.NewExtractor(source, normalizer, logger.With("component", "extractor"))

	return NewService(
		sheet.NewReader(cfg.Upload),
		NewProcessor(extractor, repo, logger.With("component", "processor")),
		aggregate.NewAggregator(repo, normalizer, logger.With("component", "aggregator")),
		repo,
		logger.With("component", "service"),
	)
}
