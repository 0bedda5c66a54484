package chat

import (
	"github.com/shopstream/storefront-platform/internal/model"
	natsclient "github.com/shopstream/storefront-platform/internal/nats"
)

// NATSFeed adapts the NATS stream manager to the Feed interface.
type NATSFeed struct {
	Manager *natsclient.StreamManager
}

// Subscribe attaches the handler to the chat event subjects.
func (f NATSFeed) Subscribe(handler func(model.ChatEvent)) (Subscription, error) {
	return f.Manager.Subscribe(handler)
}
