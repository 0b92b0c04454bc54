package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/observability"
)

// ErrDisallowed возвращается, когда robots.txt запрещает URL.
var ErrDisallowed = errors.New("URL disallowed by robots.txt")

// PageSource отдаёт HTML страницы: обычный HTTP (Fetcher) или headless
// браузер (Renderer).
type PageSource interface {
	Fetch(ctx context.Context, urlStr string) (*FetchResponse, error)
	Close() error
}

// NewPageSource выбирает источник по конфигу: rod.enabled → Renderer.
func NewPageSource(cfg *config.Config, logger *observability.Logger) PageSource {
	if cfg.Rod.Enabled {
		return NewRenderer(cfg, logger)
	}
	return NewFetcher(cfg, logger)
}

type FetchResponse struct {
	StatusCode int
	Body       []byte
	URL        string
	Headers    http.Header
}

type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	logger      *observability.Logger
	robotsCache *RobotsCache
	rateLimiter *RateLimiter
}

func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout: cfg.GetTotalTimeout(),
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: cfg.GetConnectTimeout()}).DialContext,
			MaxIdleConns:        cfg.HTTP.MaxIdleConnections,
			MaxIdleConnsPerHost: cfg.HTTP.MaxIdleConnectionsPerHost,
			IdleConnTimeout:     cfg.GetIdleConnectionTimeout(),
		},
	}
}

// newRobotsCache возвращает nil, если проверка robots.txt выключена.
func newRobotsCache(cfg *config.Config) *RobotsCache {
	if !cfg.Robots.Enabled {
		return nil
	}
	return NewRobotsCache(cfg.GetRobotsCacheTTL(), cfg.HTTP.UserAgent)
}

// checkRobots возвращает ErrDisallowed, если robots.txt запрещает URL.
// cache == nil значит, что проверка выключена.
func checkRobots(ctx context.Context, cache *RobotsCache, client *http.Client, u *url.URL) error {
	if cache == nil || u.Host == "" {
		return nil
	}
	allowed, err := cache.IsAllowed(ctx, u, client)
	if err != nil {
		return fmt.Errorf("robots.txt check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDisallowed, u.String())
	}
	return nil
}

func NewFetcher(cfg *config.Config, logger *observability.Logger) *Fetcher {
	return &Fetcher{
		client:      newHTTPClient(cfg),
		cfg:         cfg,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
		robotsCache: newRobotsCache(cfg),
	}
}

// Fetch делает ровно один GET: без ретраев, статус ответа возвращается
// вызывающему как есть.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	host := parsedURL.Host

	if err := checkRobots(ctx, f.robotsCache, f.client, parsedURL); err != nil {
		return nil, err
	}

	// Apply rate limiting
	release, err := f.rateLimiter.Wait(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	return f.fetchOnce(ctx, urlStr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (*FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.cfg.HTTP.UserAgent)
	if f.cfg.HTTP.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", f.cfg.HTTP.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("Failed to close response body", "url", urlStr, "error", err.Error())
		}
	}()

	reader := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	body = toUTF8(body, resp.Header.Get("Content-Type"))

	f.logger.Debug("Page fetched",
		"url", urlStr,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(body),
	)

	return &FetchResponse{
		StatusCode: resp.StatusCode,
		Body:       body,
		URL:        resp.Request.URL.String(),
		Headers:    resp.Header,
	}, nil
}

// Close освобождает idle соединения транспорта.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}
