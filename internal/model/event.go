package model

// ChatEventType represents the type of realtime chat event.
type ChatEventType string

const (
	ChatEventMessageCreated ChatEventType = "message_created"
	ChatEventMessageUpdated ChatEventType = "message_updated"
)

// ChatEvent is the push-event payload delivered over the realtime channel.
// Delivery is at-least-once and unordered relative to query responses, so
// consumers merge by message id rather than appending blindly.
type ChatEvent struct {
	Type    ChatEventType `json:"type"`
	Message Message       `json:"message"`
}
