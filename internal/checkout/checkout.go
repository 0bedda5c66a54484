// Package checkout turns a cart into a durable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shopstream/storefront-platform/internal/cart"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

// ErrEmptyCart reports a checkout attempt with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// Service places orders from cart state.
type Service struct {
	orders   store.OrderStore
	carts    *cart.Service
	notifier notify.Notifier
	logger   *logger.Logger
}

// NewService creates the checkout service.
func NewService(orders store.OrderStore, carts *cart.Service, notifier notify.Notifier, log *logger.Logger) *Service {
	return &Service{
		orders:   orders,
		carts:    carts,
		notifier: notifier,
		logger:   log,
	}
}

// PlaceOrder freezes the user's cart into an order at current effective
// prices and empties the cart on success.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req model.CheckoutRequest) (*model.Order, error) {
	c := s.carts.For(ctx, userID)
	lines := c.Lines()
	if len(lines) == 0 {
		metrics.OrdersTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyCart
	}

	now := time.Now()
	items := make([]model.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = model.OrderItem{
			ProductID:       line.Product.ID,
			Title:           line.Product.Title,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.Product.EffectiveUnitPrice(),
		}
	}

	order := model.Order{
		ID:              uuid.Must(uuid.NewV7()).String(),
		UserID:          userID,
		Status:          model.OrderStatusPending,
		Total:           c.Subtotal(),
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.InsertOrder(ctx, &order); err != nil {
		metrics.OrdersTotal.WithLabelValues("failed").Inc()
		s.notifier.Error(userID, "Checkout failed, your cart is unchanged")
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	c.Clear(ctx)
	metrics.OrdersTotal.WithLabelValues("placed").Inc()
	s.notifier.Success(userID, "Order placed")
	return &order, nil
}

// Orders returns the user's order history, newest first.
func (s *Service) Orders(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.orders.ListOrdersForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
