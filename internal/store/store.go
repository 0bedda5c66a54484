// Package store defines the durable collection interfaces the platform is
// built against, and their backends. Everything above this package works with
// normalized model types; shape differences between backends stop here.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopstream/storefront-platform/internal/model"
)

// ErrNotFound reports that a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// BackendError is a failure from a durable store. Callers surface it to the
// user as a transient notification; it never corrupts local state.
type BackendError struct {
	Code    string
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError wraps err as a BackendError with the given code.
func NewBackendError(code, message string, err error) *BackendError {
	return &BackendError{Code: code, Message: message, Err: err}
}

// ProductStore is the catalog collection.
type ProductStore interface {
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	InsertProduct(ctx context.Context, p *model.Product) error
}

// ProfileStore is the user profile collection.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error
}

// ConversationStore is the conversations collection.
type ConversationStore interface {
	// ListConversationsForUser returns conversations where the user is either
	// party, most recently updated first.
	ListConversationsForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// FindConversationByPair looks up the conversation between two users in
	// either role ordering. Returns ErrNotFound when none exists.
	FindConversationByPair(ctx context.Context, userA, userB string) (*model.Conversation, error)
	InsertConversation(ctx context.Context, c *model.Conversation) error
	// TouchConversation bumps the conversation's updated-at timestamp.
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

// MessageStore is the messages collection.
type MessageStore interface {
	// ListMessages returns the full history ascending by creation time.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	// LastMessage returns the most recent message, or ErrNotFound when the
	// conversation has none.
	LastMessage(ctx context.Context, conversationID string) (*model.Message, error)
	// CountUnread counts messages from senderID with no read timestamp.
	CountUnread(ctx context.Context, conversationID, senderID string) (int, error)
	InsertMessage(ctx context.Context, m *model.Message) error
	// MarkRead stamps every unread message from senderID and returns the
	// updated records so callers can fan the updates out.
	MarkRead(ctx context.Context, conversationID, senderID string, at time.Time) ([]model.Message, error)
}

// OrderStore is the orders collection.
type OrderStore interface {
	InsertOrder(ctx context.Context, o *model.Order) error
	ListOrdersForUser(ctx context.Context, userID string) ([]model.Order, error)
}

// Store aggregates every collection the platform persists.
type Store interface {
	ProductStore
	ProfileStore
	ConversationStore
	MessageStore
	OrderStore
}
