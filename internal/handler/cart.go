package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopstream/storefront-platform/internal/cart"
	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// CartHandler handles cart endpoints.
type CartHandler struct {
	carts    *cart.Service
	products store.ProductStore
	logger   *logger.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(carts *cart.Service, products store.ProductStore, log *logger.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		logger:   log,
	}
}

// Get handles GET /api/v1/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	c := h.carts.For(r.Context(), userID)
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		writeStoreError(w, err, "product not found")
		return
	}

	c := h.carts.For(ctx, userID)
	if err := c.AddItem(ctx, *product, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	writeJSON(w, http.StatusOK, c.Snapshot())
}

// UpdateItem handles PUT /api/v1/cart/items/{productID}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	var req model.UpdateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity < 1 {
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	c := h.carts.For(ctx, userID)
	c.SetQuantity(ctx, productID, req.Quantity)

	writeJSON(w, http.StatusOK, c.Snapshot())
}

// RemoveItem handles DELETE /api/v1/cart/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	c := h.carts.For(ctx, userID)
	c.RemoveItem(ctx, productID)

	writeJSON(w, http.StatusOK, c.Snapshot())
}

// Clear handles DELETE /api/v1/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c := h.carts.For(ctx, userID)
	c.Clear(ctx)

	writeJSON(w, http.StatusOK, c.Snapshot())
}
