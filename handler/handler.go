package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"grocer-agent/internal/config"
	"grocer-agent/internal/domain"
	"grocer-agent/internal/usecase"
)

type ChatUseCase interface {
	ProcessMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
}

type PreferenceUseCase interface {
	Get(ctx context.Context, userID string) domain.Preferences
	Set(ctx context.Context, userID, name, value string) bool
	Clear(ctx context.Context, userID string) bool
}

type ShoppingUseCase interface {
	Add(ctx context.Context, userID string, items []string) bool
	Remove(ctx context.Context, userID string, items []string) bool
	Clear(ctx context.Context, userID string) bool
	List(ctx context.Context, userID string) []string
}

// RequestMetrics counts served requests and exposes them for scraping.
type RequestMetrics interface {
	ObserveRequest(method, route string, status int)
	Handler() http.Handler
}

// Handler serves the JSON API over net/http and, through Handle, over API
// Gateway proxy events.
type Handler struct {
	chat        ChatUseCase
	preferences PreferenceUseCase
	shopping    ShoppingUseCase
	logger      *slog.Logger
	metrics     RequestMetrics
	basePath    string
	cors        *config.CORSConfig

	root http.Handler
}

type Option func(*Handler)

// WithBasePath sets the API prefix. Default "/api/v1".
func WithBasePath(p string) Option {
	return func(h *Handler) {
		h.basePath = "/" + strings.Trim(strings.TrimSpace(p), "/")
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics counts requests and mounts GET /metrics.
func WithMetrics(m RequestMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

func WithCORS(cfg config.CORSConfig) Option {
	return func(h *Handler) {
		h.cors = &cfg
	}
}

func NewHandler(chat ChatUseCase, preferences PreferenceUseCase, shopping ShoppingUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if preferences == nil {
		return nil, errors.New("handler: preference use case must not be nil")
	}
	if shopping == nil {
		return nil, errors.New("handler: shopping use case must not be nil")
	}
	h := &Handler{
		chat:        chat,
		preferences: preferences,
		shopping:    shopping,
		logger:      slog.Default(),
		basePath:    "/api/v1",
	}
	for _, opt := range opts {
		opt(h)
	}
	h.root = h.routes()
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) routes() http.Handler {
	mux := http.NewServeMux()
	p := h.basePath

	mux.HandleFunc("POST "+p+"/chat", h.postChat)
	mux.HandleFunc("GET "+p+"/history/{user_id}", h.getHistory)

	mux.HandleFunc("GET "+p+"/preferences/{user_id}", h.getPreferences)
	mux.HandleFunc("POST "+p+"/preferences", h.postPreference)
	mux.HandleFunc("DELETE "+p+"/preferences/{user_id}", h.deletePreferences)

	mux.HandleFunc("GET "+p+"/shopping-list/{user_id}", h.getShoppingList)
	mux.HandleFunc("POST "+p+"/shopping-list", h.postShoppingList)
	mux.HandleFunc("POST "+p+"/shopping-list/remove", h.removeShoppingList)
	mux.HandleFunc("DELETE "+p+"/shopping-list/{user_id}", h.deleteShoppingList)

	mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}

	mws := []Middleware{
		Recovery(h.logger),
		CorrelationID,
		Logger(h.logger),
	}
	if h.cors != nil {
		mws = append(mws, CORS(*h.cors))
	}
	if h.metrics != nil {
		// Innermost so the mux records the matched pattern on this request.
		mws = append(mws, Metrics(h.metrics))
	}
	return Chain(mws...)(mux)
}
