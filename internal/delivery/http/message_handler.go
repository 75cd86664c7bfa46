package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"wichat/internal/usecase"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messageUc usecase.MessageUsecase
	userUc    usecase.UserUsecase
	log       *zap.Logger
}

func NewMessageHandler(messageUc usecase.MessageUsecase, userUc usecase.UserUsecase, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageUc: messageUc,
		userUc:    userUc,
		log:       log,
	}
}

// GET /messages/users
func (h *MessageHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.userUc.ListExcept(r.Context(), claims.UserId)
	if err != nil {
		h.log.Error("list users", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   users,
	})
}

// GET /messages/unread-count
func (h *MessageHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	counts, err := h.messageUc.UnreadCounts(r.Context(), claims.UserId)
	if err != nil {
		h.log.Error("unread counts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"counts":  counts,
	})
}

// GET /messages/{peerId}?page&limit
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerId := chi.URLParam(r, "peerId")

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	limit, err := queryInt(r, "limit", usecase.DefaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	conversation, err := h.messageUc.ConversationPage(r.Context(), claims.UserId, peerId, page, limit)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidPaging) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("get conversation", zap.String("peerId", peerId), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"messages":   conversation.Messages,
		"pagination": conversation.Pagination,
	})
}

// POST /messages/send/{peerId}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerId := chi.URLParam(r, "peerId")

	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.messageUc.Send(r.Context(), claims.UserId, peerId, req.Text, req.Image)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, usecase.ErrPeerNotFound):
			writeError(w, http.StatusNotFound, "peer not found")
		case errors.Is(err, usecase.ErrMediaUpload):
			h.log.Error("send message media upload", zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to store image")
		default:
			h.log.Error("send message", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "message sent successfully",
		"data":    message,
	})
}

// PATCH /messages/mark-read/{peerId}
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerId := chi.URLParam(r, "peerId")

	if err := h.messageUc.MarkRead(r.Context(), claims.UserId, peerId); err != nil {
		h.log.Error("mark read", zap.String("peerId", peerId), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "messages marked as read",
	})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
