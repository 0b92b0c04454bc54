package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"sitewatch-parser/internal/config"
)

// DefaultCurrencySymbols снимаются перед разбором цены.
var DefaultCurrencySymbols = []string{"$", "€", "£", "₽"}

var spacesRe = regexp.MustCompile(`\s+`)

type Normalizer struct {
	symbols        []string
	trimNBSP       bool
	collapseSpaces bool
}

func NewNormalizer(cfg config.NormalizeConfig) *Normalizer {
	symbols := cfg.CurrencySymbols
	if len(symbols) == 0 {
		symbols = DefaultCurrencySymbols
	}
	return &Normalizer{
		symbols:        symbols,
		trimNBSP:       cfg.TrimNBSP,
		collapseSpaces: cfg.CollapseSpaces,
	}
}

// Text приводит извлечённый текст к виду для хранения: всегда TrimSpace,
// NBSP и схлопывание пробелов только если включены в конфиге.
func (n *Normalizer) Text(text string) string {
	if n.trimNBSP {
		// Заменяем NBSP (\u00A0) на обычный пробел
		text = strings.ReplaceAll(text, "\u00A0", " ")
	}
	if n.collapseSpaces {
		text = spacesRe.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(text)
}

// ParsePrice снимает символы валют и пробелы по краям и разбирает число.
// Дробная часть отделяется только '.', разделители тысяч не
// поддерживаются: "1,299.00" не разбирается. NaN и ±Inf отвергаются.
func (n *Normalizer) ParsePrice(value string) (float64, bool) {
	for _, sym := range n.symbols {
		value = strings.ReplaceAll(value, sym, "")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	amount, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, false
	}
	return amount, true
}
