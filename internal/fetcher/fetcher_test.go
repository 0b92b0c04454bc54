package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/observability"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.HTTP.TotalTimeoutMS = 2000
	cfg.RateLimit.RPM = 1000
	return cfg
}

func TestFetchReturnsStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sitewatch/1.0", r.UserAgent())
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "<html><body><p>ok</p></body></html>")
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	defer f.Close()

	resp, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), "<p>ok</p>")

	// Не-200 не является ошибкой транспорта: статус отдаётся вызывающему
	resp, err = f.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte("<b>zipped</b>"))
		_ = gz.Close()
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<b>zipped</b>", string(resp.Body))
}

func TestFetchNetworkError(t *testing.T) {
	f := NewFetcher(testConfig(), observability.NewNopLogger())
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}

func TestFetchRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		fmt.Fprint(w, "<p>public</p>")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Robots.Enabled = true
	f := NewFetcher(cfg, observability.NewNopLogger())

	_, err := f.Fetch(context.Background(), srv.URL+"/private/price")
	require.True(t, errors.Is(err, ErrDisallowed), "got %v", err)

	resp, err := f.Fetch(context.Background(), srv.URL+"/public")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewPageSource(t *testing.T) {
	cfg := testConfig()
	_, ok := NewPageSource(cfg, observability.NewNopLogger()).(*Fetcher)
	require.True(t, ok)

	cfg.Rod.Enabled = true
	_, ok = NewPageSource(cfg, observability.NewNopLogger()).(*Renderer)
	require.True(t, ok)
}

func TestRateLimiterRPM(t *testing.T) {
	rl := NewRateLimiter(2, 1)

	release, err := rl.Wait(context.Background(), "example.com")
	require.NoError(t, err)
	release()

	// Вторая попытка в ту же минуту должна ждать и упереться в дедлайн
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = rl.Wait(ctx, "example.com")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// Другой хост считается отдельно
	release, err = rl.Wait(context.Background(), "other.example.com")
	require.NoError(t, err)
	release()
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	release, err := rl.Wait(context.Background(), "example.com")
	require.NoError(t, err)
	release()

	now = now.Add(time.Minute)
	release, err = rl.Wait(context.Background(), "example.com")
	require.NoError(t, err)
	release()
}

func TestRateLimiterConcurrency(t *testing.T) {
	rl := NewRateLimiter(1, 100)

	release, err := rl.Wait(context.Background(), "example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = rl.Wait(ctx, "example.com")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release, err = rl.Wait(context.Background(), "example.com")
	require.NoError(t, err)
	release()
}

func TestFetchDecodesLegacyCharset(t *testing.T) {
	// "Цена" в windows-1251
	cp1251 := []byte{0xD6, 0xE5, 0xED, 0xE0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write(append(append([]byte("<html><body><b>"), cp1251...), []byte("</b></body></html>")...))
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), "<b>Цена</b>")
}

func TestToUTF8KeepsUTF8(t *testing.T) {
	body := []byte(`<html><head><meta charset="utf-8"></head><body>€12.50</body></html>`)
	require.Equal(t, body, toUTF8(body, "text/html"))
}

func TestFetchKeepsUndeclaredUTF8(t *testing.T) {
	// Кодировка не объявлена, а первые килобайты чистый ASCII
	page := "<html><head><script>" + strings.Repeat("var x = 1;\n", 160) + "</script></head>" +
		`<body><span class="price">€12.50</span></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(), observability.NewNopLogger())
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(resp.Body), `<span class="price">€12.50</span>`)
}

func TestToUTF8DecodesUndeclaredLegacyBytes(t *testing.T) {
	// 0x80 в windows-1252 это €; как UTF-8 такое тело невалидно
	body := []byte("<html><body>\x8012.50</body></html>")
	require.Equal(t, "<html><body>€12.50</body></html>", string(toUTF8(body, "text/html")))
}

func TestRendererRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		fmt.Fprint(w, "<p>public</p>")
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Robots.Enabled = true
	cfg.Rod.Enabled = true
	cfg.Rod.ChromePath = "/nonexistent/chrome"
	r := NewRenderer(cfg, observability.NewNopLogger())
	defer func() { _ = r.Close() }()

	// Запрет срабатывает до запуска браузера
	_, err := r.Fetch(context.Background(), srv.URL+"/private/price")
	require.True(t, errors.Is(err, ErrDisallowed), "got %v", err)
}
