package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/middleware"
	"wallet/internal/money"
	"wallet/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

const rateWindow = time.Minute

type Handler struct {
	txRunner       db.TxRunner
	cfg            config.Config
	users          UserStore
	audit          AuditStore
	transfers      TransferService
	notifier       Notifier
	streams        StreamManager
	limiter        ratelimit.Limiter
	initialBalance decimal.Decimal
}

// New wires the HTTP layer. limiter may be nil to disable rate limiting.
func New(txRunner db.TxRunner, cfg config.Config, users UserStore, audit AuditStore, transfers TransferService, notifier Notifier, streams StreamManager, limiter ratelimit.Limiter) *Handler {
	initialBalance, err := money.Parse(cfg.InitialBalance)
	if err != nil || initialBalance.IsNegative() {
		log.Printf("handlers: invalid initial balance %q, using 0", cfg.InitialBalance)
		initialBalance = decimal.Zero
	}
	return &Handler{
		txRunner:       txRunner,
		cfg:            cfg,
		users:          users,
		audit:          audit,
		transfers:      transfers,
		notifier:       notifier,
		streams:        streams,
		limiter:        limiter,
		initialBalance: initialBalance,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	streaming := middleware.StreamAuth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.With(h.rateLimit("login", ratelimit.ByIP)).Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
		r.With(authenticated).Post("/set-pin", h.SetPIN)
		r.With(middleware.OptionalAuth(h.cfg.JWTSecret)).Get("/search", h.Search)
	})
	router.With(authenticated, h.rateLimit("transfer", byUser)).Post("/transfer", h.Transfer)
	router.With(authenticated).Get("/transactions", h.ListTransactions)
	router.With(streaming).Get("/stream", h.Stream)
	router.With(streaming).Get("/sse/stream", h.Stream)
	router.With(streaming).Get("/ws", h.WS)

	router.Get("/health", h.Health)
	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"stream_bound": h.streams.Bound(),
	})
}

func (h *Handler) rateLimit(scope string, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(h.limiter, scope, rateWindow, keyFn)
}

func byUser(r *http.Request) string {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return strconv.FormatInt(userID, 10)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
