// Package server отдаёт операции Service по HTTP. Каждый собеседник
// определяется заголовком X-Chat-ID и получает свою Session.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"sitewatch-parser/internal/app"
	"sitewatch-parser/internal/config"
	"sitewatch-parser/internal/observability"
)

// ChatIDHeader выбирает сессию собеседника.
const ChatIDHeader = "X-Chat-ID"

// formField задаёт имя поля multipart с файлом.
const formField = "file"

type Server struct {
	service  *app.Service
	logger   *observability.Logger
	maxBytes int64
	addr     string

	mu       sync.Mutex
	sessions *lru.Cache[string, *app.Session]
}

func New(cfg *config.Config, service *app.Service, logger *observability.Logger) (*Server, error) {
	sessions, err := lru.New[string, *app.Session](cfg.Server.MaxSessions)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Server{
		service:  service,
		logger:   logger,
		maxBytes: cfg.Upload.MaxBytes,
		addr:     cfg.Server.Addr,
		sessions: sessions,
	}, nil
}

// Router возвращает обработчик со всеми маршрутами.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	r.Get("/start", s.handleStart)
	r.Post("/upload", s.handleUpload)

	// Имена команд исходного бота оставлены как синонимы
	r.Get("/data", s.handleData)
	r.Get("/get_data", s.handleData)
	r.Get("/average-price", s.handleAveragePrice)
	r.Get("/average_price", s.handleAveragePrice)

	return r
}

// ListenAndServe работает до отмены ctx, затем останавливает сервер,
// давая активным запросам shutdownTimeout на завершение.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Slog().Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", "timeout", shutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) session(r *http.Request) *app.Session {
	id := r.Header.Get(ChatIDHeader)
	if id == "" {
		id = app.DefaultSessionID
	}

	// Get и Add под одним замком, чтобы не создать две сессии на один id
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(id)
	if !ok {
		sess = app.NewSession(id)
		if evicted := s.sessions.Add(id, sess); evicted {
			s.logger.Debug("Session evicted", "limit", s.sessions.Len())
		}
	}
	return sess
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, s.service.Start())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxBytes {
		s.tooLarge(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)

	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.tooLarge(w)
			return
		}
		s.logger.Warn("Upload without file", "error", err.Error())
		writeText(w, http.StatusBadRequest, app.MsgInvalidFile)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.logger.Error("Failed to close uploaded file", "error", err.Error())
		}
	}()

	writeText(w, http.StatusOK, s.service.Upload(r.Context(), s.session(r), header.Filename, file))
}

func (s *Server) tooLarge(w http.ResponseWriter) {
	writeText(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File is too large: limit is %d bytes.", s.maxBytes))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Data(r.Context(), s.session(r))
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Failed to read data.")
		return
	}
	writeText(w, http.StatusOK, out)
}

func (s *Server) handleAveragePrice(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.AveragePrice(r.Context(), s.session(r))
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Failed to compute average prices.")
		return
	}
	writeText(w, http.StatusOK, out)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"session", r.Header.Get(ChatIDHeader),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
