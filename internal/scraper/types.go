package scraper

import "sitewatch-parser/internal/storage"

// SiteSpec описывает одну строку загруженной таблицы (имя, URL и выражение пути).
type SiteSpec struct {
	Name       string
	URL        string
	Expression string
	Line       int // номер строки в исходном файле, для логов
}

// Cause классифицирует исход извлечения.
type Cause int

const (
	CauseNone     Cause = iota // данные извлечены
	CauseNetwork               // сеть, таймаут, некорректный URL
	CauseStatus                // ответ не 200 OK
	CauseParse                 // разметка или выражение не разобраны
	CauseNotFound              // выражение ничего не нашло
	CauseBlocked               // запрещено robots.txt
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "ok"
	case CauseNetwork:
		return "network"
	case CauseStatus:
		return "status"
	case CauseParse:
		return "parse"
	case CauseNotFound:
		return "not_found"
	case CauseBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ParseCause обратна Cause.String; неизвестные значения дают CauseParse.
func ParseCause(s string) Cause {
	switch s {
	case "ok", "":
		return CauseNone
	case "network":
		return CauseNetwork
	case "status":
		return CauseStatus
	case "not_found":
		return CauseNotFound
	case "blocked":
		return CauseBlocked
	default:
		return CauseParse
	}
}

// Result описывает исход одного извлечения. Value всегда заполнен: это либо
// извлечённый текст, либо диагностическое сообщение для пользователя.
type Result struct {
	Value string
	Cause Cause
	Err   error
}

func (r Result) OK() bool {
	return r.Cause == CauseNone
}

// Record собирает запись для хранилища из строки таблицы и результата.
func (r Result) Record(spec SiteSpec) storage.Record {
	return storage.Record{
		Name:       spec.Name,
		URL:        spec.URL,
		Expression: spec.Expression,
		Value:      r.Value,
		Status:     r.Cause.String(),
	}
}
