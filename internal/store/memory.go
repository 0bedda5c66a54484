package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopstream/storefront-platform/internal/model"
)

// MemoryStore is an in-memory Store used for development and tests.
type MemoryStore struct {
	mu sync.RWMutex

	products      map[int64]*model.Product
	profiles      map[string]*model.Profile
	conversations map[string]*model.Conversation
	messages      map[string][]model.Message // conversation id -> ascending history
	orders        map[string][]model.Order   // user id -> orders

	nextProductID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:      make(map[int64]*model.Product),
		profiles:      make(map[string]*model.Profile),
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]model.Message),
		orders:        make(map[string][]model.Order),
		nextProductID: 1,
	}
}

// ListProducts returns catalog entries matching the filter.
func (s *MemoryStore) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.Product
	for _, p := range s.products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.SellerID != "" && p.SellerID != filter.SellerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, *p)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}

	return matched[start:end], total, nil
}

// GetProduct retrieves a product by id.
func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// InsertProduct stores a new product, assigning its id when unset.
func (s *MemoryStore) InsertProduct(ctx context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = s.nextProductID
	}
	if p.ID >= s.nextProductID {
		s.nextProductID = p.ID + 1
	}
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

// GetProfile retrieves a profile by user id.
func (s *MemoryStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// UpsertProfile stores a profile.
func (s *MemoryStore) UpsertProfile(ctx context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

// ListConversationsForUser returns conversations involving the user, most
// recently updated first.
func (s *MemoryStore) ListConversationsForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var convs []model.Conversation
	for _, c := range s.conversations {
		if c.Involves(userID) {
			convs = append(convs, *c)
		}
	}

	sort.Slice(convs, func(i, j int) bool { return convs[i].UpdatedAt.After(convs[j].UpdatedAt) })
	return convs, nil
}

// GetConversation retrieves a conversation by id.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// FindConversationByPair looks up the conversation between two users in either
// role ordering.
func (s *MemoryStore) FindConversationByPair(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conversations {
		if (c.CustomerID == userA && c.SellerID == userB) || (c.CustomerID == userB && c.SellerID == userA) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// InsertConversation stores a new conversation.
func (s *MemoryStore) InsertConversation(ctx context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

// TouchConversation bumps a conversation's updated-at timestamp.
func (s *MemoryStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	c.UpdatedAt = at
	return nil
}

// ListMessages returns a conversation's history ascending by creation time.
func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[conversationID]
	out := make([]model.Message, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LastMessage returns the most recent message of a conversation.
func (s *MemoryStore) LastMessage(ctx context.Context, conversationID string) (*model.Message, error) {
	msgs, err := s.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

// CountUnread counts unread messages from senderID in a conversation.
func (s *MemoryStore) CountUnread(ctx context.Context, conversationID, senderID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages[conversationID] {
		if m.SenderID == senderID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

// InsertMessage appends a message to its conversation's history.
func (s *MemoryStore) InsertMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[m.ConversationID]; !ok {
		return ErrNotFound
	}
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], *m)
	return nil
}

// MarkRead stamps every unread message from senderID and returns the updated
// records.
func (s *MemoryStore) MarkRead(ctx context.Context, conversationID, senderID string, at time.Time) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []model.Message
	history := s.messages[conversationID]
	for i := range history {
		if history[i].SenderID == senderID && history[i].ReadAt == nil {
			ts := at
			history[i].ReadAt = &ts
			updated = append(updated, history[i])
		}
	}
	return updated, nil
}

// InsertOrder stores a completed checkout.
func (s *MemoryStore) InsertOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.UserID] = append(s.orders[o.UserID], *o)
	return nil
}

// ListOrdersForUser returns a user's orders, newest first.
func (s *MemoryStore) ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]model.Order, len(s.orders[userID]))
	copy(orders, s.orders[userID])
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}
