package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/storefront-platform/internal/kv"
	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Success(userID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) Error(userID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

type failingKV struct{}

func (failingKV) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("kv down")
}

func (failingKV) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("kv down")
}

func newTestCart(t *testing.T) (*Cart, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return New(context.Background(), "user-1", kv.NewMemoryStore(), n, logger.NewNop()), n
}

func testProduct(id int64, price float64, discount int) model.Product {
	return model.Product{
		ID:              id,
		Title:           "Wireless Headphones",
		Price:           price,
		DiscountPercent: discount,
	}
}

func TestAddItemMergesByProductID(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()
	p := testProduct(1, 50, 0)

	require.NoError(t, c.AddItem(ctx, p, 1))
	require.NoError(t, c.AddItem(ctx, p, 2))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 3, c.TotalItemCount())
}

func TestAddItemRejectsQuantityBelowOne(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	err := c.AddItem(ctx, testProduct(1, 50, 0), 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	err = c.AddItem(ctx, testProduct(1, 50, 0), -2)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	assert.Empty(t, c.Lines())
}

func TestSubtotalUsesDiscountedPrice(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 100, 20), 3))

	assert.InDelta(t, 240.0, c.Subtotal(), 0.001)
}

func TestSubtotalMixedLines(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 100, 20), 1))
	require.NoError(t, c.AddItem(ctx, testProduct(2, 30, 0), 2))

	assert.InDelta(t, 140.0, c.Subtotal(), 0.001)
	assert.Equal(t, 3, c.TotalItemCount())
}

func TestSetQuantityBelowOneIsIgnored(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 50, 0), 2))

	c.SetQuantity(ctx, 1, 0)
	c.SetQuantity(ctx, 1, -5)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestSetQuantityUnknownProductIsIgnored(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 50, 0), 2))
	c.SetQuantity(ctx, 99, 5)

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), lines[0].Product.ID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestRemoveAbsentProductIsNoop(t *testing.T) {
	c, n := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 50, 0), 1))
	c.RemoveItem(ctx, 42)

	assert.Len(t, c.Lines(), 1)
	assert.Equal(t, "Removed from cart", n.last())
}

func TestClearEmptiesCart(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 50, 0), 2))
	require.NoError(t, c.AddItem(ctx, testProduct(2, 10, 0), 1))
	c.Clear(ctx)

	assert.Empty(t, c.Lines())
	assert.Equal(t, 0, c.TotalItemCount())
	assert.Zero(t, c.Subtotal())
}

func TestPersistenceFailureDoesNotLoseCart(t *testing.T) {
	n := &recordingNotifier{}
	c := New(context.Background(), "user-1", failingKV{}, n, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 100, 0), 2))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Added to cart", n.last())
}

func TestCartRehydratesFromPersistence(t *testing.T) {
	ctx := context.Background()
	persist := kv.NewMemoryStore()
	n := &recordingNotifier{}

	first := New(ctx, "user-1", persist, n, logger.NewNop())
	require.NoError(t, first.AddItem(ctx, testProduct(1, 100, 20), 3))

	second := New(ctx, "user-1", persist, n, logger.NewNop())
	lines := second.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.InDelta(t, 240.0, second.Subtotal(), 0.001)
}

func TestNotificationsOnAddAndMerge(t *testing.T) {
	c, n := newTestCart(t)
	ctx := context.Background()
	p := testProduct(1, 50, 0)

	require.NoError(t, c.AddItem(ctx, p, 1))
	assert.Equal(t, "Added to cart", n.last())

	require.NoError(t, c.AddItem(ctx, p, 2))
	assert.Equal(t, "Updated quantity in cart (3)", n.last())
}

func TestSnapshotDerivedTotals(t *testing.T) {
	c, _ := newTestCart(t)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, testProduct(1, 100, 20), 2))
	require.NoError(t, c.AddItem(ctx, testProduct(2, 15, 0), 1))

	snap := c.Snapshot()
	assert.Len(t, snap.Lines, 2)
	assert.Equal(t, 3, snap.ItemCount)
	assert.InDelta(t, 175.0, snap.Subtotal, 0.001)
}
