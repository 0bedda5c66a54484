package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/cart"
	"github.com/shopstream/storefront-platform/internal/chat"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// AuthHandler handles session lifecycle endpoints. Token issuance lives with
// the identity provider; this service only tears down per-session state.
type AuthHandler struct {
	chat   *chat.Service
	carts  *cart.Service
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(chatSvc *chat.Service, carts *cart.Service, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		chat:   chatSvc,
		carts:  carts,
		logger: log,
	}
}

// SignOut handles POST /api/v1/auth/signout
//
// Releases the user's reconciler and cart instance. The cart's persisted copy
// survives and is rehydrated on next sign-in; conversation state is rebuilt
// from the store.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	h.chat.Release(userID)
	h.carts.Release(userID)

	h.logger.Info("user signed out", zap.String("user_id", userID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
