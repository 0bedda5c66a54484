// Package cart implements the cart aggregator: the sole owner of a buyer's
// pending purchase selections and their derived totals.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/kv"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

// ErrInvalidQuantity reports a quantity below 1.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Cart holds one user's cart lines. In-memory state is authoritative for the
// session; every mutation is also written through to the KV store, and
// write-through failures are swallowed after logging.
type Cart struct {
	userID   string
	persist  kv.Store
	notifier notify.Notifier
	logger   *logger.Logger

	mu    sync.Mutex
	lines []model.CartLine
}

// New creates a cart for the user, rehydrating any persisted lines.
func New(ctx context.Context, userID string, persist kv.Store, notifier notify.Notifier, log *logger.Logger) *Cart {
	c := &Cart{
		userID:   userID,
		persist:  persist,
		notifier: notifier,
		logger:   log,
	}
	c.rehydrate(ctx)
	return c
}

func persistKey(userID string) string {
	return "cart:" + userID
}

func (c *Cart) rehydrate(ctx context.Context) {
	data, err := c.persist.Get(ctx, persistKey(c.userID))
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("failed to rehydrate cart, starting empty",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
		return
	}

	var lines []model.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		c.logger.Warn("discarding corrupt persisted cart",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	c.lines = lines
	c.mu.Unlock()
}

// AddItem adds quantity of the product, merging into an existing line when
// the product is already in the cart. Quantity below 1 is rejected.
func (c *Cart) AddItem(ctx context.Context, product model.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	merged := false
	for i := range c.lines {
		if c.lines[i].Product.ID == product.ID {
			c.lines[i].Quantity += quantity
			quantity = c.lines[i].Quantity
			merged = true
			break
		}
	}
	if !merged {
		c.lines = append(c.lines, model.CartLine{Product: product, Quantity: quantity})
	}
	c.writeThrough(ctx)
	c.mu.Unlock()

	metrics.RecordCartOperation("add")
	if merged {
		c.notifier.Success(c.userID, fmt.Sprintf("Updated quantity in cart (%d)", quantity))
	} else {
		c.notifier.Success(c.userID, "Added to cart")
	}
	return nil
}

// RemoveItem deletes the line for the product. Removing an absent product is
// not an error.
func (c *Cart) RemoveItem(ctx context.Context, productID int64) {
	c.mu.Lock()
	kept := c.lines[:0]
	for _, line := range c.lines {
		if line.Product.ID != productID {
			kept = append(kept, line)
		}
	}
	c.lines = kept
	c.writeThrough(ctx)
	c.mu.Unlock()

	metrics.RecordCartOperation("remove")
	c.notifier.Success(c.userID, "Removed from cart")
}

// SetQuantity overwrites the line's quantity. Quantities below 1 and unknown
// products leave the cart unchanged.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity < 1 {
		return
	}

	c.mu.Lock()
	changed := false
	for i := range c.lines {
		if c.lines[i].Product.ID == productID {
			c.lines[i].Quantity = quantity
			changed = true
			break
		}
	}
	if changed {
		c.writeThrough(ctx)
	}
	c.mu.Unlock()

	if changed {
		metrics.RecordCartOperation("set_quantity")
	}
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	c.lines = nil
	c.writeThrough(ctx)
	c.mu.Unlock()

	metrics.RecordCartOperation("clear")
	c.notifier.Success(c.userID, "Cart cleared")
}

// TotalItemCount returns the sum of all line quantities.
func (c *Cart) TotalItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

// Subtotal returns the post-discount total across all lines. It is computed
// from the lines on every call; there is no cached value to go stale.
func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0.0
	for _, line := range c.lines {
		total += line.LineTotal()
	}
	return total
}

// Lines returns a snapshot of the cart's lines.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Snapshot returns the cart view with derived totals.
func (c *Cart) Snapshot() model.CartResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]model.CartLine, len(c.lines))
	copy(lines, c.lines)

	count := 0
	subtotal := 0.0
	for _, line := range lines {
		count += line.Quantity
		subtotal += line.LineTotal()
	}

	return model.CartResponse{
		Lines:     lines,
		ItemCount: count,
		Subtotal:  subtotal,
	}
}

// writeThrough persists the current lines. Persistence failure is logged and
// counted, never surfaced: the in-memory cart stays authoritative. Callers
// must hold c.mu.
func (c *Cart) writeThrough(ctx context.Context) {
	data, err := json.Marshal(c.lines)
	if err != nil {
		c.logger.Error("failed to encode cart for persistence",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
		metrics.CartPersistFailures.Inc()
		return
	}
	if err := c.persist.Set(ctx, persistKey(c.userID), data); err != nil {
		c.logger.Warn("cart persistence failed, in-memory state retained",
			zap.String("user_id", c.userID),
			zap.Error(err),
		)
		metrics.CartPersistFailures.Inc()
	}
}
