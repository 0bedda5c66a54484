package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
)

const (
	customerID = "customer-1"
	sellerID   = "seller-1"
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

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChatEvent
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, ev *model.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *ev)
	return nil
}

func (p *recordingPublisher) byType(t model.ChatEventType) []model.ChatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.ChatEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type noopSub struct{}

func (noopSub) Unsubscribe() error { return nil }

type manualFeed struct {
	mu      sync.Mutex
	handler func(model.ChatEvent)
}

func (f *manualFeed) Subscribe(handler func(model.ChatEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return noopSub{}, nil
}

// gatedBackend delays ListMessages for selected conversations so tests can
// interleave a second open while the first load is in flight.
type gatedBackend struct {
	Backend
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newGatedBackend(inner Backend) *gatedBackend {
	return &gatedBackend{Backend: inner, gates: make(map[string]chan struct{})}
}

func (b *gatedBackend) gate(conversationID string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.gates[conversationID] = ch
	return ch
}

func (b *gatedBackend) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	b.mu.Lock()
	gate := b.gates[conversationID]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return b.Backend.ListMessages(ctx, conversationID)
}

// failingProfiles wraps a backend so every profile lookup fails.
type failingProfiles struct {
	Backend
}

func (failingProfiles) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return nil, store.NewBackendError("PROFILE_DOWN", "profile service unavailable", nil)
}

func newTestBackend(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.UpsertProfile(ctx, &model.Profile{
		ID: customerID, FullName: "Ada Buyer", Role: model.RoleCustomer,
	}))
	require.NoError(t, st.UpsertProfile(ctx, &model.Profile{
		ID: sellerID, FullName: "Tech Haven", Role: model.RoleSeller,
	}))
	return st
}

func newTestReconciler(t *testing.T, userID string, backend Backend) (*Reconciler, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	r := NewReconciler(userID, backend, pub, &manualFeed{}, &recordingNotifier{}, logger.NewNop())
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)
	return r, pub
}

func insertConversation(t *testing.T, st *store.MemoryStore, id, customer, seller string, at time.Time) model.Conversation {
	t.Helper()
	conv := model.Conversation{
		ID: id, CustomerID: customer, SellerID: seller, CreatedAt: at, UpdatedAt: at,
	}
	require.NoError(t, st.InsertConversation(context.Background(), &conv))
	return conv
}

func insertMessage(t *testing.T, st *store.MemoryStore, id, convID, sender, content string, at time.Time) model.Message {
	t.Helper()
	msg := model.Message{
		ID: id, ConversationID: convID, SenderID: sender, Content: content, CreatedAt: at,
	}
	require.NoError(t, st.InsertMessage(context.Background(), &msg))
	return msg
}

func TestStartConversationReusesExistingEitherOrder(t *testing.T) {
	st := newTestBackend(t)
	ctx := context.Background()

	asCustomer, _ := newTestReconciler(t, customerID, st)
	first, err := asCustomer.StartConversation(ctx, sellerID)
	require.NoError(t, err)

	again, err := asCustomer.StartConversation(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// The seller reaching out to the customer lands in the same thread even
	// though the roles are reversed.
	asSeller, _ := newTestReconciler(t, sellerID, st)
	fromSeller, err := asSeller.StartConversation(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, fromSeller.ID)
}

func TestStartConversationWithSelfRejected(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)

	_, err := r.StartConversation(context.Background(), customerID)
	require.ErrorIs(t, err, ErrSelfConversation)
}

func TestSendMessageRejectsWhitespaceOnly(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now())

	err := r.SendMessage(context.Background(), conv.ID, "   \n\t ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	msgs, err := st.ListMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendMessagePersistsAndPublishes(t *testing.T) {
	st := newTestBackend(t)
	r, pub := newTestReconciler(t, customerID, st)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now().Add(-time.Hour))

	require.NoError(t, r.SendMessage(context.Background(), conv.ID, "Is this in stock?"))

	msgs, err := st.ListMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, customerID, msgs[0].SenderID)
	assert.Equal(t, "Is this in stock?", msgs[0].Content)

	created := pub.byType(model.ChatEventMessageCreated)
	require.Len(t, created, 1)
	assert.Equal(t, msgs[0].ID, created[0].Message.ID)

	// Sending bumps the conversation's activity timestamp.
	stored, err := st.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.After(conv.UpdatedAt))
}

func TestSendMessageDoesNotInsertLocally(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now())
	ctx := context.Background()

	_, err := r.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.NoError(t, r.SendMessage(ctx, conv.ID, "hello"))

	// The sent message reaches the thread through the push path, not here.
	_, thread := r.ActiveThread()
	assert.Empty(t, thread)
}

func TestOpenConversationMarksCounterpartMessagesRead(t *testing.T) {
	st := newTestBackend(t)
	r, pub := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, base)
	insertMessage(t, st, "m1", conv.ID, sellerID, "Hi there", base.Add(time.Minute))
	insertMessage(t, st, "m2", conv.ID, sellerID, "Still interested?", base.Add(2*time.Minute))

	summaries, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].UnreadCount)
	assert.Equal(t, "Tech Haven", summaries[0].ParticipantName)

	msgs, err := r.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	assert.Zero(t, r.Conversations()[0].UnreadCount)

	unread, err := st.CountUnread(ctx, conv.ID, sellerID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// Read receipts fan out so the sender's view updates too.
	updates := pub.byType(model.ChatEventMessageUpdated)
	assert.Len(t, updates, 2)
}

func TestUnreadCountsOnlyInactiveConversations(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	convA := insertConversation(t, st, "conv-a", customerID, sellerID, base)
	otherSeller := "seller-2"
	require.NoError(t, st.UpsertProfile(ctx, &model.Profile{ID: otherSeller, FullName: "Home Works", Role: model.RoleSeller}))
	convB := insertConversation(t, st, "conv-b", customerID, otherSeller, base)

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	_, err = r.OpenConversation(ctx, convA.ID)
	require.NoError(t, err)

	inActive := insertMessage(t, st, "ma-1", convA.ID, sellerID, "in the open thread", time.Now())
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: inActive})

	inOther := insertMessage(t, st, "mb-1", convB.ID, otherSeller, "elsewhere", time.Now())
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: inOther})

	for _, s := range r.Conversations() {
		switch s.ID {
		case convA.ID:
			assert.Zero(t, s.UnreadCount, "active conversation must not accrue unread")
		case convB.ID:
			assert.Equal(t, 1, s.UnreadCount)
		}
	}

	// The message in the active conversation landed in the thread instead.
	activeID, thread := r.ActiveThread()
	assert.Equal(t, convA.ID, activeID)
	require.Len(t, thread, 1)
	assert.Equal(t, inActive.ID, thread[0].ID)
}

func TestRedeliveredEventDoesNotDoubleCount(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now().Add(-time.Hour))
	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	msg := insertMessage(t, st, "m1", conv.ID, sellerID, "hello", time.Now())
	ev := model.ChatEvent{Type: model.ChatEventMessageCreated, Message: msg}
	r.handleEvent(ev)
	r.handleEvent(ev)

	summaries := r.Conversations()
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].UnreadCount)
}

func TestThreadMergeKeepsAscendingOrder(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, base)
	insertMessage(t, st, "m1", conv.ID, sellerID, "first", base.Add(time.Minute))
	insertMessage(t, st, "m3", conv.ID, sellerID, "third", base.Add(3*time.Minute))

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	_, err = r.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)

	// A delayed event for a message created between the two already loaded.
	m2 := model.Message{
		ID: "m2", ConversationID: conv.ID, SenderID: customerID,
		Content: "second", CreatedAt: base.Add(2 * time.Minute),
	}
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: m2})

	_, thread := r.ActiveThread()
	require.Len(t, thread, 3)
	assert.Equal(t, "m1", thread[0].ID)
	assert.Equal(t, "m2", thread[1].ID)
	assert.Equal(t, "m3", thread[2].ID)

	// The out-of-order event must not regress the preview.
	assert.Equal(t, "third", r.Conversations()[0].LastMessage.Text)
}

func TestUpdatedEventReplacesThreadEntry(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, base)
	orig := insertMessage(t, st, "m1", conv.ID, customerID, "hello", base.Add(time.Minute))

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	_, err = r.OpenConversation(ctx, conv.ID)
	require.NoError(t, err)

	readAt := time.Now()
	updated := orig
	updated.ReadAt = &readAt
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageUpdated, Message: updated})

	_, thread := r.ActiveThread()
	require.Len(t, thread, 1)
	require.NotNil(t, thread[0].ReadAt)
}

func TestStaleHistoryLoadDiscarded(t *testing.T) {
	st := newTestBackend(t)
	backend := newGatedBackend(st)
	r, _ := newTestReconciler(t, customerID, backend)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	conv1 := insertConversation(t, st, "conv-1", customerID, sellerID, base)
	otherSeller := "seller-2"
	require.NoError(t, st.UpsertProfile(ctx, &model.Profile{ID: otherSeller, FullName: "Home Works", Role: model.RoleSeller}))
	conv2 := insertConversation(t, st, "conv-2", customerID, otherSeller, base)
	insertMessage(t, st, "m1", conv1.ID, sellerID, "from conv-1", base.Add(time.Minute))
	insertMessage(t, st, "m2", conv2.ID, otherSeller, "from conv-2", base.Add(2*time.Minute))

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	gate := backend.gate(conv1.ID)

	type result struct {
		msgs []model.Message
		err  error
	}
	firstDone := make(chan result, 1)
	go func() {
		msgs, err := r.OpenConversation(ctx, conv1.ID)
		firstDone <- result{msgs, err}
	}()

	// Wait until the first open is parked inside the history load, then
	// switch to the second conversation.
	require.Eventually(t, func() bool {
		id, _ := r.ActiveThread()
		return id == conv1.ID
	}, time.Second, time.Millisecond)

	msgs2, err := r.OpenConversation(ctx, conv2.ID)
	require.NoError(t, err)
	require.Len(t, msgs2, 1)

	close(gate)
	first := <-firstDone
	require.NoError(t, first.err)
	assert.Nil(t, first.msgs, "superseded load must be discarded")

	activeID, thread := r.ActiveThread()
	assert.Equal(t, conv2.ID, activeID)
	require.Len(t, thread, 1)
	assert.Equal(t, "m2", thread[0].ID)
}

func TestHistoryLoadMergesEventsReceivedInFlight(t *testing.T) {
	st := newTestBackend(t)
	backend := newGatedBackend(st)
	r, _ := newTestReconciler(t, customerID, backend)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	conv := insertConversation(t, st, "conv-1", customerID, sellerID, base)
	insertMessage(t, st, "m1", conv.ID, sellerID, "loaded from history", base.Add(time.Minute))

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	gate := backend.gate(conv.ID)

	opened := make(chan []model.Message, 1)
	go func() {
		msgs, err := r.OpenConversation(ctx, conv.ID)
		require.NoError(t, err)
		opened <- msgs
	}()

	require.Eventually(t, func() bool {
		id, _ := r.ActiveThread()
		return id == conv.ID
	}, time.Second, time.Millisecond)

	// A newer message pushed while the history load is parked.
	m2 := insertMessage(t, st, "m2", conv.ID, sellerID, "pushed mid-load", base.Add(2*time.Minute))
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: m2})

	close(gate)
	msgs := <-opened

	// The slow history response folds in around the pushed message instead of
	// clobbering it.
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)

	_, thread := r.ActiveThread()
	require.Len(t, thread, 2)
	assert.Equal(t, "m1", thread[0].ID)
	assert.Equal(t, "m2", thread[1].ID)
}

func TestRedeliveryOfOlderMessageDoesNotDoubleCount(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now().Add(-time.Hour))
	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	mA := insertMessage(t, st, "m-a", conv.ID, sellerID, "first", time.Now().Add(-2*time.Minute))
	mB := insertMessage(t, st, "m-b", conv.ID, sellerID, "second", time.Now().Add(-time.Minute))

	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: mA})
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: mB})

	// mA is no longer the latest merged message when it comes around again.
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: mA})

	summaries := r.Conversations()
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].UnreadCount)
}

func TestProfileFailureDegradesToPlaceholder(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, failingProfiles{Backend: st})
	ctx := context.Background()

	insertConversation(t, st, "conv-1", customerID, sellerID, time.Now())

	summaries, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Unknown User", summaries[0].ParticipantName)
}

func TestConversationsOrderedByLastActivity(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	quiet := insertConversation(t, st, "conv-quiet", customerID, sellerID, base)
	otherSeller := "seller-2"
	require.NoError(t, st.UpsertProfile(ctx, &model.Profile{ID: otherSeller, FullName: "Home Works", Role: model.RoleSeller}))
	busy := insertConversation(t, st, "conv-busy", customerID, otherSeller, base)

	insertMessage(t, st, "m1", quiet.ID, sellerID, "old", base.Add(time.Minute))
	insertMessage(t, st, "m2", busy.ID, otherSeller, "recent", base.Add(30*time.Minute))

	summaries, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, busy.ID, summaries[0].ID)
	assert.Equal(t, quiet.ID, summaries[1].ID)

	// New activity in the quiet conversation moves it to the top.
	m3 := insertMessage(t, st, "m3", quiet.ID, sellerID, "newest", time.Now())
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: m3})

	summaries = r.Conversations()
	assert.Equal(t, quiet.ID, summaries[0].ID)
}

func TestEventForForeignConversationIgnored(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	foreign := insertConversation(t, st, "conv-foreign", "someone-else", sellerID, time.Now())
	msg := insertMessage(t, st, "m1", foreign.ID, sellerID, "not for us", time.Now())
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: msg})

	assert.Empty(t, r.Conversations())
}

func TestEventForNewOwnConversationRefreshesList(t *testing.T) {
	st := newTestBackend(t)
	r, _ := newTestReconciler(t, customerID, st)
	ctx := context.Background()

	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)
	require.Empty(t, r.Conversations())

	// The seller starts the thread; we only hear about it through the feed.
	conv := insertConversation(t, st, "conv-new", customerID, sellerID, time.Now())
	msg := insertMessage(t, st, "m1", conv.ID, sellerID, "hello from seller", time.Now())
	r.handleEvent(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: msg})

	summaries := r.Conversations()
	require.Len(t, summaries, 1)
	assert.Equal(t, conv.ID, summaries[0].ID)
	assert.Equal(t, "hello from seller", summaries[0].LastMessage.Text)
}

func TestFeedDeliveryReachesListeners(t *testing.T) {
	st := newTestBackend(t)
	feed := &manualFeed{}
	pub := &recordingPublisher{}
	r := NewReconciler(customerID, st, pub, feed, &recordingNotifier{}, logger.NewNop())
	require.NoError(t, r.Start())
	t.Cleanup(r.Close)
	ctx := context.Background()

	conv := insertConversation(t, st, "conv-1", customerID, sellerID, time.Now())
	_, err := r.LoadConversations(ctx)
	require.NoError(t, err)

	events, remove := r.Listen()
	defer remove()

	msg := insertMessage(t, st, "m1", conv.ID, sellerID, "over the wire", time.Now())
	feed.handler(model.ChatEvent{Type: model.ChatEventMessageCreated, Message: msg})

	select {
	case ev := <-events:
		assert.Equal(t, model.ChatEventMessageCreated, ev.Type)
		assert.Equal(t, msg.ID, ev.Message.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded event")
	}
}
