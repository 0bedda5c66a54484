package chat

import (
	"sync"

	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

// Service owns one reconciler per signed-in user. Reconcilers are created on
// first use and released on sign-out and on server shutdown, so realtime
// subscriptions never leak across sessions.
type Service struct {
	backend  Backend
	pub      Publisher
	feed     Feed
	notifier notify.Notifier
	logger   *logger.Logger

	mu          sync.Mutex
	reconcilers map[string]*Reconciler
}

// NewService creates the chat service.
func NewService(backend Backend, pub Publisher, feed Feed, notifier notify.Notifier, log *logger.Logger) *Service {
	return &Service{
		backend:     backend,
		pub:         pub,
		feed:        feed,
		notifier:    notifier,
		logger:      log,
		reconcilers: make(map[string]*Reconciler),
	}
}

// For returns the user's reconciler, creating and starting it on first use.
func (s *Service) For(userID string) (*Reconciler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reconcilers[userID]; ok {
		return r, nil
	}

	r := NewReconciler(userID, s.backend, s.pub, s.feed, s.notifier, s.logger)
	if err := r.Start(); err != nil {
		return nil, err
	}
	s.reconcilers[userID] = r
	metrics.ActiveReconcilers.Inc()
	return r, nil
}

// Release tears down the user's reconciler. Called on sign-out; conversation
// state is cleared, the durable copy stays in the store.
func (s *Service) Release(userID string) {
	s.mu.Lock()
	r, ok := s.reconcilers[userID]
	if ok {
		delete(s.reconcilers, userID)
	}
	s.mu.Unlock()

	if ok {
		r.Close()
		metrics.ActiveReconcilers.Dec()
	}
}

// Shutdown releases every reconciler.
func (s *Service) Shutdown() {
	s.mu.Lock()
	recs := make([]*Reconciler, 0, len(s.reconcilers))
	for _, r := range s.reconcilers {
		recs = append(recs, r)
	}
	s.reconcilers = make(map[string]*Reconciler)
	s.mu.Unlock()

	for _, r := range recs {
		r.Close()
		metrics.ActiveReconcilers.Dec()
	}
}
