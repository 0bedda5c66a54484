package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/checkout"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// CheckoutHandler handles checkout and order-history endpoints.
type CheckoutHandler struct {
	service *checkout.Service
	logger  *logger.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(svc *checkout.Service, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  log,
	}
}

// Checkout handles POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShippingAddress == "" {
		writeError(w, http.StatusBadRequest, "shipping address is required")
		return
	}

	order, err := h.service.PlaceOrder(ctx, userID, req)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			writeError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		h.logger.Error("checkout failed", zap.String("user_id", userID), zap.Error(err))
		writeStoreError(w, err, "order not found")
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders
func (h *CheckoutHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	orders, err := h.service.Orders(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list orders", zap.String("user_id", userID), zap.Error(err))
		writeStoreError(w, err, "orders not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListOrdersResponse{
		Orders: orders,
		Total:  len(orders),
	})
}
