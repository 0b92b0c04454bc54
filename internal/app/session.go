package app

import "sitewatch-parser/internal/storage"

// DefaultSessionID используется CLI и запросами без X-Chat-ID.
const DefaultSessionID = "default"

// Session хранит последнюю загрузку одного собеседника. Методы вызываются
// только из Service, под его мьютексом.
type Session struct {
	ID   string
	last *Upload
}

func NewSession(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}
	return &Session{ID: id}
}

// Remember заменяет предыдущую загрузку.
func (s *Session) Remember(u *Upload) {
	s.last = u
}

// LastUpload возвращает последнюю загрузку или nil.
func (s *Session) LastUpload() *Upload {
	return s.last
}

// Unsaved возвращает записи последней загрузки, которые не удалось сохранить.
func (s *Session) Unsaved() []storage.Record {
	if s.last == nil || s.last.Saved() {
		return nil
	}
	return s.last.Records
}
