package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"sitewatch-parser/internal/fetcher"
	"sitewatch-parser/internal/normalize"
	"sitewatch-parser/internal/observability"
)

// Диагностические сообщения, которые сохраняются вместо данных.
const (
	MsgFetchError = "Error fetching data from the website"
	MsgNotFound   = "Data not found"
)

// CSSPrefix переключает выражение с XPath на CSS селектор: "css:span.price".
const CSSPrefix = "css:"

type Extractor struct {
	source     fetcher.PageSource
	normalizer *normalize.Normalizer
	logger     *observability.Logger
}

func NewExtractor(source fetcher.PageSource, normalizer *normalize.Normalizer, logger *observability.Logger) *Extractor {
	return &Extractor{
		source:     source,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Extract скачивает страницу и возвращает текст первого узла, найденного
// выражением. Никогда не паникует и не возвращает ошибку: любой сбой
// превращается в Result с заполненным Value.
func (e *Extractor) Extract(ctx context.Context, urlStr, expression string) Result {
	resp, err := e.source.Fetch(ctx, urlStr)
	if err != nil {
		cause := CauseNetwork
		if errors.Is(err, fetcher.ErrDisallowed) {
			cause = CauseBlocked
		}
		e.logger.Warn("Fetch failed", "url", urlStr, "cause", cause.String(), "error", err.Error())
		return Result{Value: err.Error(), Cause: cause, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("Unexpected status", "url", urlStr, "status", resp.StatusCode)
		return Result{
			Value: MsgFetchError,
			Cause: CauseStatus,
			Err:   fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	res := e.ExtractHTML(resp.Body, expression)
	if !res.OK() {
		e.logger.Debug("Extraction produced no data", "url", urlStr, "expression", expression, "cause", res.Cause.String())
	}
	return res
}

// ExtractHTML применяет выражение к уже загруженной разметке.
func (e *Extractor) ExtractHTML(body []byte, expression string) Result {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		err = fmt.Errorf("parse html: %w", err)
		return Result{Value: err.Error(), Cause: CauseParse, Err: err}
	}

	text, found, err := evaluate(doc, expression)
	if err != nil {
		return Result{Value: err.Error(), Cause: CauseParse, Err: err}
	}
	if !found {
		return Result{Value: MsgNotFound, Cause: CauseNotFound}
	}
	return Result{Value: e.normalizer.Text(text), Cause: CauseNone}
}

// evaluate возвращает текст первого совпадения. found=false значит, что совпадений нет.
func evaluate(doc *goquery.Document, expression string) (text string, found bool, err error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", false, fmt.Errorf("empty path expression")
	}

	if sel, ok := strings.CutPrefix(expression, CSSPrefix); ok {
		return evaluateCSS(doc, strings.TrimSpace(sel))
	}
	return evaluateXPath(doc, expression)
}

func evaluateCSS(doc *goquery.Document, selector string) (string, bool, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return "", false, fmt.Errorf("invalid css selector %q: %w", selector, err)
	}
	sel := doc.FindMatcher(matcher).First()
	if sel.Length() == 0 {
		return "", false, nil
	}
	return sel.Text(), true, nil
}

func evaluateXPath(doc *goquery.Document, expression string) (text string, found bool, err error) {
	expr, err := xpath.Compile(expression)
	if err != nil {
		return "", false, fmt.Errorf("invalid xpath %q: %w", expression, err)
	}

	// Движок xpath может паниковать на некоторых функциях во время вычисления
	defer func() {
		if r := recover(); r != nil {
			text, found = "", false
			err = fmt.Errorf("evaluate xpath %q: %v", expression, r)
		}
	}()

	root := doc.Nodes[0]
	nav := htmlquery.CreateXPathNavigator(root)
	switch v := expr.Evaluate(nav).(type) {
	case *xpath.NodeIterator:
		return firstInDocumentOrder(root, v)
	case string:
		// string(//missing) даёт "", это то же самое, что "не найдено"
		if v == "" {
			return "", false, nil
		}
		return v, true, nil
	case float64:
		if math.IsNaN(v) {
			return "", false, nil
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	default:
		return "", false, fmt.Errorf("unsupported xpath result type %T", v)
	}
}

type xpathMatch struct {
	node  *html.Node
	value string
}

// firstInDocumentOrder выбирает из набора узлов самый ранний в документе.
// Объединение "a | b" движок отдаёт в порядке операндов, а не документа.
func firstInDocumentOrder(root *html.Node, it *xpath.NodeIterator) (string, bool, error) {
	var matches []xpathMatch
	for it.MoveNext() {
		cur := it.Current()
		m := xpathMatch{value: cur.Value()}
		if hn, ok := cur.(*htmlquery.NodeNavigator); ok {
			m.node = hn.Current()
		}
		matches = append(matches, m)
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return matches[0].value, true, nil
	}

	order := make(map[*html.Node]int)
	i := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	best := 0
	for j := 1; j < len(matches); j++ {
		pj, okj := order[matches[j].node]
		pb, okb := order[matches[best].node]
		// Атрибуты одного элемента делят его позицию: побеждает первый
		if okj && (!okb || pj < pb) {
			best = j
		}
	}
	return matches[best].value, true, nil
}
