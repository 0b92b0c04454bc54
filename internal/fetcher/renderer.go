package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/observability"
)

// Renderer загружает страницу в headless Chrome и отдаёт HTML после
// выполнения JS. Браузер поднимается лениво при первом запросе.
type Renderer struct {
	cfg         *config.Config
	logger      *observability.Logger
	rateLimiter *RateLimiter
	robotsCache *RobotsCache
	client      *http.Client // только для robots.txt

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewRenderer(cfg *config.Config, logger *observability.Logger) *Renderer {
	return &Renderer{
		cfg:         cfg,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimit.MaxConcurrentPerHost, cfg.RateLimit.RPM),
		robotsCache: newRobotsCache(cfg),
		client:      newHTTPClient(cfg),
	}
}

func (r *Renderer) Fetch(ctx context.Context, urlStr string) (*FetchResponse, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if err := checkRobots(ctx, r.robotsCache, r.client, parsedURL); err != nil {
		return nil, err
	}

	browser, err := r.connect()
	if err != nil {
		return nil, err
	}

	release, err := r.rateLimiter.Wait(ctx, hostOf(urlStr))
	if err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	defer release()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to close page", "url", urlStr, "error", err.Error())
		}
	}()

	timed := page.Timeout(r.cfg.GetRodPageTimeout())

	// Статус берём из ответа на сам документ, а не на подресурсы
	var status int
	wait := timed.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	if err := timed.Navigate(urlStr); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	wait()

	if err := timed.Timeout(r.cfg.GetRodWaitLoadTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	html, err := timed.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	info, err := timed.Info()
	finalURL := urlStr
	if err == nil {
		finalURL = info.URL
	}

	r.logger.Debug("Page rendered", "url", urlStr, "status", status, "bytes", len(html))

	return &FetchResponse{
		StatusCode: status,
		Body:       []byte(html),
		URL:        finalURL,
	}, nil
}

func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	controlURL := r.cfg.Rod.RemoteURL
	if controlURL == "" {
		l := launcher.New().Bin(r.cfg.Rod.ChromePath).Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		r.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	r.logger.Info("Headless browser connected", "control_url", controlURL)
	r.browser = b
	return b, nil
}

// Close закрывает браузер и убивает локально запущенный Chrome.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.client.CloseIdleConnections()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}
