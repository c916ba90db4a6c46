package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talentlink/internal/observability/middleware"
	"talentlink/internal/realtime"
	"talentlink/internal/service"
)

const requestTimeout = 30 * time.Second

type Options struct {
	AllowedOrigins   []string
	TrustProxy       bool
	RateLimitRequest int
	RateLimitWindow  time.Duration
}

type Handler struct {
	auth     service.AuthService
	messages service.MessageService
	tickets  service.TicketService
	registry *realtime.Registry
	upgrader websocket.Upgrader
}

func NewRouter(auth service.AuthService, messages service.MessageService, tickets service.TicketService, registry *realtime.Registry, opts Options) http.Handler {
	h := &Handler{
		auth:     auth,
		messages: messages,
		tickets:  tickets,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The websocket route sits outside the timeout middleware; its handler
	// lives as long as the connection.
	r.Get("/ws/{user_id}", h.serveWS)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(opts.RateLimitRequest, opts.RateLimitWindow, opts.TrustProxy))
		r.Use(chimw.Timeout(requestTimeout))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/forgot-password", h.forgotPassword)
			r.Post("/reset-password", h.resetPassword)
			r.With(RequireUser(auth)).Get("/me", h.me)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(RequireUser(auth))
			r.Post("/ws-ticket", h.issueTicket)
			r.Post("/send", h.sendMessage)
			r.Get("/conversations", h.listConversations)
			r.Get("/conversations/{user_id}", h.getConversation)
			r.Patch("/conversations/{user_id}/read", h.markRead)
			r.Get("/unread-count", h.unreadCount)
			r.Get("/users", h.searchUsers)
		})
	})

	return r
}

// originChecker admits requests without an Origin header (non-browser
// clients) and browsers on an allowed origin.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	wildcard := false
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
