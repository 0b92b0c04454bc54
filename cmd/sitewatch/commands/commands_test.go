package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sitewatch-parser/internal/app"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
http:
  total_timeout_ms: 2000
rate_limit:
  rpm: 1000
storage:
  driver: sqlite
  dsn: %q
observability:
  log_path: %q
  log_level: error
`, filepath.Join(dir, "websites.db"), filepath.Join(dir, "logs", "sitewatch.log"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestStartCommand(t *testing.T) {
	require.Equal(t, app.MsgStart+"\n", run(t, "start"))
}

func TestUploadThenAveragePrice(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><i>₽ 300</i></body></html>`)
	}))
	defer site.Close()

	cfgPath := writeTestConfig(t)
	sheetPath := filepath.Join(t.TempDir(), "sites.csv")
	require.NoError(t, os.WriteFile(sheetPath, []byte("name,url,xpath\nshop,"+site.URL+",//i\n"), 0o644))

	require.Equal(t, "shop: ₽ 300\n", run(t, "--config", cfgPath, "upload", sheetPath))
	require.Equal(t, app.HeaderAverages+"\nName: shop\nAverage Price: 300.00\n", run(t, "--config", cfgPath, "average-price"))
	require.Contains(t, run(t, "--config", cfgPath, "get_data"), "Data: ₽ 300")
}

func TestMissingExplicitConfigFails(t *testing.T) {
	rootCmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "data"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	require.ErrorContains(t, rootCmd.ExecuteContext(context.Background()), "failed to load config")
}
