package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

type RobotsCache struct {
	cache     map[string]*robotsEntry
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*robotsEntry),
		ttl:       ttl,
		userAgent: userAgent,
	}
}

// IsAllowed проверяет URL по robots.txt его хоста. Сетевые ошибки при
// получении robots.txt трактуются как "разрешено".
func (rc *RobotsCache) IsAllowed(ctx context.Context, u *url.URL, client *http.Client) (bool, error) {
	key := u.Scheme + "://" + u.Host

	rc.mu.RLock()
	cached, exists := rc.cache[key]
	rc.mu.RUnlock()

	if !exists || time.Now().After(cached.expiresAt) {
		data, err := rc.load(ctx, key, client)
		if err != nil {
			// Network error: assume allowed
			return true, nil
		}
		cached = &robotsEntry{data: data, expiresAt: time.Now().Add(rc.ttl)}

		rc.mu.Lock()
		rc.cache[key] = cached
		rc.mu.Unlock()
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return cached.data.TestAgent(path, rc.userAgent), nil
}

func (rc *RobotsCache) load(ctx context.Context, base string, client *http.Client) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, err
	}

	// 4xx → всё разрешено, 5xx → всё запрещено (семантика robotstxt)
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
