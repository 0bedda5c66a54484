package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/chat"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// ConversationHandler handles conversation and message endpoints.
type ConversationHandler struct {
	chat   *chat.Service
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(chatSvc *chat.Service, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		chat:   chatSvc,
		logger: log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	rec, err := h.chat.For(userID)
	if err != nil {
		h.logger.Error("failed to attach chat session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat unavailable")
		return
	}

	summaries, err := rec.LoadConversations(ctx)
	if err != nil {
		h.logger.Error("failed to load conversations", zap.String("user_id", userID), zap.Error(err))
		writeStoreError(w, err, "conversations not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         len(summaries),
	})
}

// Start handles POST /api/v1/conversations
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(req.SellerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.chat.For(userID)
	if err != nil {
		h.logger.Error("failed to attach chat session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat unavailable")
		return
	}

	conv, err := rec.StartConversation(ctx, req.SellerID)
	if err != nil {
		if errors.Is(err, chat.ErrSelfConversation) {
			writeError(w, http.StatusBadRequest, "you can't start a conversation with yourself")
			return
		}
		h.logger.Error("failed to start conversation", zap.String("user_id", userID), zap.Error(err))
		writeStoreError(w, err, "seller not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /api/v1/conversations/{id}/messages
//
// Opening a conversation is what marks the counterpart's messages read, so
// this endpoint doubles as the open-conversation operation.
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.chat.For(userID)
	if err != nil {
		h.logger.Error("failed to attach chat session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat unavailable")
		return
	}

	msgs, err := rec.OpenConversation(ctx, conversationID)
	if err != nil {
		h.logger.Error("failed to open conversation",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		writeStoreError(w, err, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListMessagesResponse{Messages: msgs})
}

// Send handles POST /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.chat.For(userID)
	if err != nil {
		h.logger.Error("failed to attach chat session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat unavailable")
		return
	}

	if err := rec.SendMessage(ctx, conversationID, req.Content); err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to send message",
			zap.String("user_id", userID),
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		writeStoreError(w, err, "conversation not found")
		return
	}

	// The message is durable; the authoritative copy reaches clients through
	// the realtime feed rather than this response.
	w.WriteHeader(http.StatusAccepted)
}
