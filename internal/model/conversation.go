package model

import (
	"time"
)

// Conversation is the durable record of a buyer/seller thread.
type Conversation struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	SellerID   string    `json:"seller_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParticipantFor returns the non-local party of the conversation as seen by
// userID.
func (c Conversation) ParticipantFor(userID string) string {
	if c.CustomerID == userID {
		return c.SellerID
	}
	return c.CustomerID
}

// Involves reports whether userID is either party of the conversation.
func (c Conversation) Involves(userID string) bool {
	return c.CustomerID == userID || c.SellerID == userID
}

// LastMessageSummary is the preview line shown in the conversation list.
type LastMessageSummary struct {
	Text              string    `json:"text"`
	Timestamp         time.Time `json:"timestamp"`
	IsFromParticipant bool      `json:"is_from_participant"`
}

// ConversationSummary is a conversation enriched for display: counterpart
// profile, preview text and unread bookkeeping.
type ConversationSummary struct {
	ID                  string             `json:"id"`
	ParticipantID       string             `json:"participant_id"`
	ParticipantName     string             `json:"participant_name"`
	ParticipantAvatar   string             `json:"participant_avatar,omitempty"`
	IsParticipantOnline bool               `json:"is_participant_online"`
	LastMessage         LastMessageSummary `json:"last_message"`
	UnreadCount         int                `json:"unread_count"`
}

// StartConversationRequest is the request to open a thread with a seller.
type StartConversationRequest struct {
	SellerID string `json:"seller_id"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}
