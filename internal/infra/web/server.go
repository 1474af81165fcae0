package web

import (
	"net/http"

	"tutoring-ai-platform/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the chat submission boundary: enqueue, job polling and
// history over plain JSON, plus the real-time websocket path.
type Server struct {
	chatUC usecase.ChatUseCase
	auth   *AuthManager
	wsPath http.Handler
	log    *zerolog.Logger
}

func NewServer(chatUC usecase.ChatUseCase, auth *AuthManager, ws http.Handler, logger *zerolog.Logger) *Server {
	sLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		chatUC: chatUC,
		auth:   auth,
		wsPath: ws,
		log:    &sLog,
	}
}

// Router builds the chi router with all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The single well-known path for all chat real-time traffic.
	r.Handle("/ws/chat", s.wsPath)

	r.Route("/api/v1/chat", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/messages", s.submitHandler())
		r.Get("/jobs/{id}", s.jobStatusHandler())
		r.Get("/history", s.historyHandler())
	})

	return r
}
