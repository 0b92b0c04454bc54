package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/fetcher"
	"sitewatch-parser/internal/normalize"
	"sitewatch-parser/internal/observability"
)

const productPage = `<html><body>
	<div class="product">
		<h1>  Widget  </h1>
		<span class="price"> $10.00 </span>
		<span class="price">$99.00</span>
		<a class="buy" href="/cart?id=7">Buy</a>
	</div>
</body></html>`

func newTestExtractor(cfg *config.Config) *Extractor {
	logger := observability.NewNopLogger()
	return NewExtractor(fetcher.NewFetcher(cfg, logger), normalize.NewNormalizer(cfg.Normalize), logger)
}

func newProductServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/product":
			fmt.Fprint(w, productPage)
		case "/gone":
			w.WriteHeader(http.StatusGone)
			fmt.Fprint(w, productPage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractFirstMatchTrimmed(t *testing.T) {
	srv := newProductServer(t)
	e := newTestExtractor(config.Default())

	res := e.Extract(context.Background(), srv.URL+"/product", "//span[@class='price']")
	require.True(t, res.OK())
	require.Equal(t, "$10.00", res.Value, "only the first match is returned")
	require.NoError(t, res.Err)
}

func TestExtractNonOKStatus(t *testing.T) {
	srv := newProductServer(t)
	e := newTestExtractor(config.Default())

	// Тело содержит совпадение, но статус не 200
	res := e.Extract(context.Background(), srv.URL+"/gone", "//span[@class='price']")
	require.Equal(t, MsgFetchError, res.Value)
	require.Equal(t, CauseStatus, res.Cause)

	res = e.Extract(context.Background(), srv.URL+"/missing", "//h1")
	require.Equal(t, MsgFetchError, res.Value)
}

func TestExtractNotFound(t *testing.T) {
	srv := newProductServer(t)
	e := newTestExtractor(config.Default())

	res := e.Extract(context.Background(), srv.URL+"/product", "//span[@class='discount']")
	require.Equal(t, MsgNotFound, res.Value)
	require.Equal(t, CauseNotFound, res.Cause)
}

func TestExtractNetworkErrorBecomesValue(t *testing.T) {
	e := newTestExtractor(config.Default())

	res := e.Extract(context.Background(), "http://127.0.0.1:1/", "//h1")
	require.Equal(t, CauseNetwork, res.Cause)
	require.Error(t, res.Err)
	require.Equal(t, res.Err.Error(), res.Value)

	res = e.Extract(context.Background(), "not a url", "//h1")
	require.Equal(t, CauseNetwork, res.Cause)
	require.NotEmpty(t, res.Value)
}

func TestExtractBlockedByRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			return
		}
		fmt.Fprint(w, productPage)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Robots.Enabled = true
	res := newTestExtractor(cfg).Extract(context.Background(), srv.URL+"/product", "//h1")
	require.Equal(t, CauseBlocked, res.Cause)
	require.Contains(t, res.Value, "robots.txt")
}

func TestExtractHTMLExpressions(t *testing.T) {
	e := newTestExtractor(config.Default())
	body := []byte(productPage)

	tests := []struct {
		name       string
		expression string
		want       string
		cause      Cause
	}{
		{"element text", "//h1", "Widget", CauseNone},
		{"attribute", "//a[@class='buy']/@href", "/cart?id=7", CauseNone},
		{"text node", "(//span[@class='price'])[2]/text()", "$99.00", CauseNone},
		{"string function", "string(//h1)", "Widget", CauseNone},
		{"count function", "count(//span[@class='price'])", "2", CauseNone},
		{"boolean function", "boolean(//h1)", "true", CauseNone},
		{"empty string function", "string(//h2)", MsgNotFound, CauseNotFound},
		{"union in document order", "//a[@class='buy'] | //h1", "Widget", CauseNone},
		{"union fallback selector", "//span[@class='sale'] | //span[@class='price']", "$10.00", CauseNone},
		{"css selector", "css: .product span.price", "$10.00", CauseNone},
		{"css no match", "css:.discount", MsgNotFound, CauseNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.ExtractHTML(body, tt.expression)
			require.Equal(t, tt.cause, res.Cause)
			require.Equal(t, tt.want, res.Value)
		})
	}
}

func TestExtractHTMLInvalidExpressions(t *testing.T) {
	e := newTestExtractor(config.Default())
	body := []byte(productPage)

	for _, expr := range []string{"//span[", "css:span[", "   "} {
		res := e.ExtractHTML(body, expr)
		require.Equal(t, CauseParse, res.Cause, "expression %q", expr)
		require.Error(t, res.Err)
		require.Equal(t, res.Err.Error(), res.Value)
	}
}

func TestCauseRoundTrip(t *testing.T) {
	for _, c := range []Cause{CauseNone, CauseNetwork, CauseStatus, CauseParse, CauseNotFound, CauseBlocked} {
		require.Equal(t, c, ParseCause(c.String()))
	}
	require.Equal(t, CauseNone, ParseCause(""))
}

func TestResultRecord(t *testing.T) {
	spec := SiteSpec{Name: "shop", URL: "https://shop.example", Expression: "//b", Line: 4}

	rec := Result{Value: MsgNotFound, Cause: CauseNotFound}.Record(spec)
	require.Equal(t, "shop", rec.Name)
	require.Equal(t, "https://shop.example", rec.URL)
	require.Equal(t, "//b", rec.Expression)
	require.Equal(t, MsgNotFound, rec.Value)
	require.Equal(t, "not_found", rec.Status)
	require.False(t, rec.OK())

	require.True(t, Result{Value: "$1", Cause: CauseNone}.Record(spec).OK())
}

func TestExtractHTMLUnionPicksEarliestNode(t *testing.T) {
	e := newTestExtractor(config.Default())
	body := []byte(`<html><body><i>first</i><b>second</b><p title="attr">third</p></body></html>`)

	tests := map[string]string{
		"//b | //i":        "first",
		"//i | //b":        "first",
		"//p/@title | //b": "second",
	}
	for expr, want := range tests {
		res := e.ExtractHTML(body, expr)
		require.True(t, res.OK(), expr)
		require.Equal(t, want, res.Value, expr)
	}
}
