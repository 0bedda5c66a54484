package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/middleware"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// ProductHandler handles catalog and seller endpoints.
type ProductHandler struct {
	products store.ProductStore
	profiles store.ProfileStore
	logger   *logger.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(products store.ProductStore, profiles store.ProfileStore, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		profiles: profiles,
		logger:   log,
	}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := model.ProductFilter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("q"),
		Limit:    20,
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			filter.Limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	products, total, err := h.products.ListProducts(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		writeStoreError(w, err, "products not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListProductsResponse{
		Products: products,
		Total:    total,
		HasMore:  filter.Offset+len(products) < total,
	})
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product ID")
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// GetSeller handles GET /api/v1/sellers/{id}
func (h *ProductHandler) GetSeller(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(sellerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), sellerID)
	if err != nil {
		writeStoreError(w, err, "seller not found")
		return
	}

	products, total, err := h.products.ListProducts(r.Context(), model.ProductFilter{SellerID: sellerID})
	if err != nil {
		h.logger.Error("failed to list seller products", zap.Error(err))
		writeStoreError(w, err, "seller not found")
		return
	}

	avg := 0.0
	if len(products) > 0 {
		for _, p := range products {
			avg += p.Rating
		}
		avg /= float64(len(products))
	}

	writeJSON(w, http.StatusOK, &model.SellerResponse{
		Profile:      *profile,
		ProductCount: total,
		AvgRating:    avg,
	})
}

// ListSellerProducts handles GET /api/v1/sellers/{id}/products
func (h *ProductHandler) ListSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(sellerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, total, err := h.products.ListProducts(r.Context(), model.ProductFilter{SellerID: sellerID})
	if err != nil {
		h.logger.Error("failed to list seller products", zap.Error(err))
		writeStoreError(w, err, "seller not found")
		return
	}

	writeJSON(w, http.StatusOK, &model.ListProductsResponse{
		Products: products,
		Total:    total,
	})
}

// CreateListing handles POST /api/v1/seller/products
func (h *ProductHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req model.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateProductTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Price <= 0 {
		writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 99 {
		writeError(w, http.StatusBadRequest, "discount percent must be between 0 and 99")
		return
	}

	now := time.Now()
	product := model.Product{
		Title:           req.Title,
		Description:     req.Description,
		Price:           req.Price,
		DiscountPercent: req.DiscountPercent,
		ImageURL:        req.ImageURL,
		Category:        req.Category,
		Stock:           req.Stock,
		SellerID:        userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.products.InsertProduct(r.Context(), &product); err != nil {
		h.logger.Error("failed to create product listing", zap.Error(err))
		writeStoreError(w, err, "seller not found")
		return
	}

	writeJSON(w, http.StatusCreated, &product)
}

// SellerStats handles GET /api/v1/seller/stats
func (h *ProductHandler) SellerStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	products, _, err := h.products.ListProducts(r.Context(), model.ProductFilter{SellerID: userID})
	if err != nil {
		h.logger.Error("failed to load seller stats", zap.Error(err))
		writeStoreError(w, err, "seller not found")
		return
	}

	stats := model.SellerStats{TotalProducts: len(products)}
	for _, p := range products {
		stats.TotalSold += p.Sold
		stats.TotalSales += float64(p.Sold) * p.EffectiveUnitPrice()
		stats.AvgRating += p.Rating
	}
	if len(products) > 0 {
		stats.AvgRating /= float64(len(products))
	}

	writeJSON(w, http.StatusOK, &stats)
}
