package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

type Config struct {
	Addr  string
	Token string
}

// Server owns the HTTP listener and the route table. When a shared
// secret is configured, mutating routes require it in X-Relay-Token.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(log *slog.Logger, handler *Handler, cfg Config) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/voice_state", handler.VoiceState)
	mux.HandleFunc("/profiles", handler.Profiles)
	mux.HandleFunc("/telegram/update", handler.TelegramUpdate)
	mux.HandleFunc("/messages", handler.Messages)
	mux.HandleFunc("/messages/search", handler.SearchMessages)
	mux.HandleFunc("/digest", handler.Digest)
	mux.HandleFunc("/allowed_users", handler.AllowedUsers)
	mux.HandleFunc("/allowed_users/", handler.AllowedUserByName)
	mux.HandleFunc("/health", handler.Health)
	mux.HandleFunc("/", handler.Root)

	chain := http.Handler(mux)
	chain = tokenMiddleware(cfg.Token, chain)
	chain = loggingMiddleware(log, chain)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           chain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func tokenMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodDelete, http.MethodPut:
			if r.Header.Get("X-Relay-Token") != token {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid relay token"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("Request handled",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
