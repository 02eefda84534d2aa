package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"grocer-agent/internal/domain"
	"grocer-agent/internal/usecase"
)

const (
	maxBodyBytes    = 1 << 20
	maxHistoryLimit = 1000
)

type chatRequest struct {
	UserID      string `json:"user_id"`
	UserMessage string `json:"user_message"`
}

type chatResponse struct {
	BotResponse  string             `json:"bot_response"`
	ShoppingList []string           `json:"shopping_list"`
	Preferences  domain.Preferences `json:"preferences"`
}

type preferenceRequest struct {
	UserID     string `json:"user_id"`
	Preference string `json:"preference"`
	Value      string `json:"value"`
}

type itemsRequest struct {
	UserID string   `json:"user_id"`
	Items  []string `json:"items"`
}

type shoppingListResponse struct {
	UserID string   `json:"user_id"`
	Items  []string `json:"items"`
}

type historyResponse struct {
	UserID   string                `json:"user_id"`
	Messages []domain.HistoryEntry `json:"messages"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) postChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := missing(map[string]string{"user_id": req.UserID, "user_message": req.UserMessage}); msg != "" {
		h.invalid(w, msg)
		return
	}

	out, err := h.chat.ProcessMessage(r.Context(), usecase.ChatInput{UserID: req.UserID, Message: req.UserMessage})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	prefs := out.Preferences
	if prefs == nil {
		prefs = domain.Preferences{}
	}
	list := out.ShoppingList
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		BotResponse:  out.BotResponse,
		ShoppingList: list,
		Preferences:  prefs,
	})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxHistoryLimit {
			h.invalid(w, fmt.Sprintf("limit must be an integer between 0 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}
	entries, err := h.chat.History(r.Context(), userID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{UserID: userID, Messages: entries})
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	prefs := h.preferences.Get(r.Context(), r.PathValue("user_id"))
	if prefs == nil {
		prefs = domain.Preferences{}
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) postPreference(w http.ResponseWriter, r *http.Request) {
	var req preferenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if msg := missing(map[string]string{"user_id": req.UserID, "preference": req.Preference, "value": req.Value}); msg != "" {
		h.invalid(w, msg)
		return
	}
	ok := h.preferences.Set(r.Context(), req.UserID, req.Preference, req.Value)
	writeJSON(w, http.StatusOK, successResponse{Success: ok})
}

func (h *Handler) deletePreferences(w http.ResponseWriter, r *http.Request) {
	ok := h.preferences.Clear(r.Context(), r.PathValue("user_id"))
	writeJSON(w, http.StatusOK, successResponse{Success: ok})
}

func (h *Handler) getShoppingList(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	items := h.shopping.List(r.Context(), userID)
	if items == nil {
		items = []string{}
	}
	writeJSON(w, http.StatusOK, shoppingListResponse{UserID: userID, Items: items})
}

func (h *Handler) postShoppingList(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.invalid(w, "user_id is required")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: h.shopping.Add(r.Context(), req.UserID, req.Items)})
}

func (h *Handler) removeShoppingList(w http.ResponseWriter, r *http.Request) {
	var req itemsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.invalid(w, "user_id is required")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: h.shopping.Remove(r.Context(), req.UserID, req.Items)})
}

func (h *Handler) deleteShoppingList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, successResponse{Success: h.shopping.Clear(r.Context(), r.PathValue("user_id"))})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// decode reads a single JSON object from the body. On failure it writes a
// 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.invalid(w, "request body must be a JSON object")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		h.invalid(w, "request body must contain a single JSON object")
		return false
	}
	return true
}

// missing names the first blank field in a stable order.
func missing(fields map[string]string) string {
	for _, name := range []string{"user_id", "user_message", "preference", "value"} {
		v, ok := fields[name]
		if ok && strings.TrimSpace(v) == "" {
			return fmt.Sprintf("%s is required", name)
		}
	}
	return ""
}

func (h *Handler) invalid(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: message})
}

// writeError maps use case errors to responses. Only invalid input is
// surfaced; anything else is logged and reported generically.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *usecase.Error
	if errors.As(err, &ue) && ue.Code == usecase.ErrorInvalidInput {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: string(ue.Code), Message: ue.Reason})
		return
	}
	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("path", r.URL.Path),
		slog.String("correlation_id", CorrelationIDFromContext(r.Context())),
		slog.Any("err", err),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   string(usecase.ErrorInternal),
		Message: "internal server error",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
