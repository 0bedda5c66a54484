package cart

import (
	"context"
	"sync"

	"github.com/shopstream/storefront-platform/internal/kv"
	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

// Service hands out one cart per user, creating it on first access.
type Service struct {
	persist  kv.Store
	notifier notify.Notifier
	logger   *logger.Logger

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewService creates the cart service.
func NewService(persist kv.Store, notifier notify.Notifier, log *logger.Logger) *Service {
	return &Service{
		persist:  persist,
		notifier: notifier,
		logger:   log,
		carts:    make(map[string]*Cart),
	}
}

// For returns the user's cart, rehydrating it from persistence on first use.
func (s *Service) For(ctx context.Context, userID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.carts[userID]; ok {
		return c
	}
	c := New(ctx, userID, s.persist, s.notifier, s.logger)
	s.carts[userID] = c
	return c
}

// Release drops the in-memory cart for a user. The persisted copy remains, so
// the cart survives sign-out and comes back on the next session.
func (s *Service) Release(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
}
