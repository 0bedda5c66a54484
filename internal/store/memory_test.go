package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/storefront-platform/internal/model"
)

func TestInsertProductAssignsSequentialIDs(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	a := model.Product{Title: "First"}
	b := model.Product{Title: "Second"}
	require.NoError(t, st.InsertProduct(ctx, &a))
	require.NoError(t, st.InsertProduct(ctx, &b))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
}

func TestListProductsFiltering(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, st.InsertProduct(ctx, &model.Product{Title: "Wireless Headphones", Category: "Electronics", SellerID: "s1"}))
	require.NoError(t, st.InsertProduct(ctx, &model.Product{Title: "Ceramic Mug", Category: "Home", SellerID: "s2"}))
	require.NoError(t, st.InsertProduct(ctx, &model.Product{Title: "USB Cable", Category: "Electronics", SellerID: "s1"}))

	byCategory, total, err := st.ListProducts(ctx, model.ProductFilter{Category: "electronics"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, byCategory, 2)

	bySearch, _, err := st.ListProducts(ctx, model.ProductFilter{Search: "mug"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, "Ceramic Mug", bySearch[0].Title)

	bySeller, _, err := st.ListProducts(ctx, model.ProductFilter{SellerID: "s1"})
	require.NoError(t, err)
	assert.Len(t, bySeller, 2)
}

func TestListProductsPagination(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.InsertProduct(ctx, &model.Product{Title: "Item"}))
	}

	page, total, err := st.ListProducts(ctx, model.ProductFilter{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 1)
}

func TestGetProductNotFound(t *testing.T) {
	st := NewMemoryStore()

	_, err := st.GetProduct(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindConversationByPairEitherOrder(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	conv := model.Conversation{ID: "c1", CustomerID: "alice", SellerID: "bob"}
	require.NoError(t, st.InsertConversation(ctx, &conv))

	found, err := st.FindConversationByPair(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)

	reversed, err := st.FindConversationByPair(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", reversed.ID)

	_, err = st.FindConversationByPair(ctx, "alice", "carol")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertMessageRequiresConversation(t *testing.T) {
	st := NewMemoryStore()

	err := st.InsertMessage(context.Background(), &model.Message{ID: "m1", ConversationID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListMessagesAscending(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, st.InsertConversation(ctx, &model.Conversation{ID: "c1", CustomerID: "a", SellerID: "b"}))
	require.NoError(t, st.InsertMessage(ctx, &model.Message{ID: "m2", ConversationID: "c1", CreatedAt: base.Add(2 * time.Minute)}))
	require.NoError(t, st.InsertMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1", CreatedAt: base.Add(time.Minute)}))

	msgs, err := st.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	last, err := st.LastMessage(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "m2", last.ID)
}

func TestMarkReadStampsOnlySenderMessages(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, st.InsertConversation(ctx, &model.Conversation{ID: "c1", CustomerID: "a", SellerID: "b"}))
	require.NoError(t, st.InsertMessage(ctx, &model.Message{ID: "m1", ConversationID: "c1", SenderID: "b", CreatedAt: base}))
	require.NoError(t, st.InsertMessage(ctx, &model.Message{ID: "m2", ConversationID: "c1", SenderID: "a", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, st.InsertMessage(ctx, &model.Message{ID: "m3", ConversationID: "c1", SenderID: "b", CreatedAt: base.Add(2 * time.Minute)}))

	unread, err := st.CountUnread(ctx, "c1", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	updated, err := st.MarkRead(ctx, "c1", "b", time.Now())
	require.NoError(t, err)
	require.Len(t, updated, 2)
	for _, m := range updated {
		assert.Equal(t, "b", m.SenderID)
		assert.NotNil(t, m.ReadAt)
	}

	unread, err = st.CountUnread(ctx, "c1", "b")
	require.NoError(t, err)
	assert.Zero(t, unread)

	// Repeating is a no-op.
	again, err := st.MarkRead(ctx, "c1", "b", time.Now())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestListConversationsForUserOrdering(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, st.InsertConversation(ctx, &model.Conversation{ID: "old", CustomerID: "a", SellerID: "b", UpdatedAt: base}))
	require.NoError(t, st.InsertConversation(ctx, &model.Conversation{ID: "new", CustomerID: "a", SellerID: "c", UpdatedAt: base.Add(time.Hour)}))
	require.NoError(t, st.InsertConversation(ctx, &model.Conversation{ID: "other", CustomerID: "x", SellerID: "y", UpdatedAt: base}))

	convs, err := st.ListConversationsForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "new", convs[0].ID)

	require.NoError(t, st.TouchConversation(ctx, "old", base.Add(2*time.Hour)))
	convs, err = st.ListConversationsForUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "old", convs[0].ID)
}

func TestOrdersNewestFirst(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, st.InsertOrder(ctx, &model.Order{ID: "o1", UserID: "a", CreatedAt: base}))
	require.NoError(t, st.InsertOrder(ctx, &model.Order{ID: "o2", UserID: "a", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, st.InsertOrder(ctx, &model.Order{ID: "o3", UserID: "b", CreatedAt: base}))

	orders, err := st.ListOrdersForUser(ctx, "a")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o2", orders[0].ID)
}

func TestSeedPopulatesCatalog(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Seed(ctx, st))

	products, total, err := st.ListProducts(ctx, model.ProductFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, products)
	assert.Equal(t, len(products), total)

	for _, p := range products {
		profile, err := st.GetProfile(ctx, p.SellerID)
		require.NoError(t, err, "every seeded product needs a seller profile")
		assert.Equal(t, model.RoleSeller, profile.Role)
	}
}
