// Package sheet разбирает загруженную таблицу сайтов (xlsx/xls или csv) в
// список scraper.SiteSpec.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/scraper"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrMissingColumn        = errors.New("missing required column")
	ErrEmpty                = errors.New("file has no header row")
)

// Обязательные колонки таблицы.
const (
	ColumnName  = "name"
	ColumnURL   = "url"
	ColumnXPath = "xpath"
)

// headerAliases задаёт допустимые альтернативные заголовки.
var headerAliases = map[string]string{
	"site":            ColumnName,
	"link":            ColumnURL,
	"path":            ColumnXPath,
	"expression":      ColumnXPath,
	"path_expression": ColumnXPath,
}

type Reader struct {
	allowed map[string]bool
	sheet   string
}

func NewReader(cfg config.UploadConfig) *Reader {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Reader{allowed: allowed, sheet: cfg.Sheet}
}

// CheckExtension проверяет только расширение имени файла.
func (r *Reader) CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !r.allowed[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return nil
}

// Read декодирует таблицу. Полностью пустые строки пропускаются, остальные
// строки попадают в результат как есть, даже с пустыми ячейками.
func (r *Reader) Read(filename string, src io.Reader) ([]scraper.SiteSpec, error) {
	if err := r.CheckExtension(filename); err != nil {
		return nil, err
	}

	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		rows, err = readCSV(src)
	} else {
		rows, err = r.readWorkbook(src)
	}
	if err != nil {
		return nil, err
	}

	return toSpecs(rows)
}

func (r *Reader) readWorkbook(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(src io.Reader) ([][]string, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv read: %w", err)
	}
	return rows, nil
}

func toSpecs(rows [][]string) ([]scraper.SiteSpec, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}

	colIx, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	cell := func(rec []string, column string) string {
		i := colIx[column]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	specs := make([]scraper.SiteSpec, 0, len(rows)-1)
	for i, rec := range rows[1:] {
		spec := scraper.SiteSpec{
			Name:       cell(rec, ColumnName),
			URL:        cell(rec, ColumnURL),
			Expression: cell(rec, ColumnXPath),
			Line:       i + 2,
		}
		if spec.Name == "" && spec.URL == "" && spec.Expression == "" {
			continue
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func headerIndex(hdr []string) (map[string]int, error) {
	idx := make(map[string]int, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.ReplaceAll(strings.ToLower(h), " ", "_")
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		// Первая колонка с таким заголовком выигрывает
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}

	for _, required := range []string{ColumnName, ColumnURL, ColumnXPath} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, required)
		}
	}
	return idx, nil
}
