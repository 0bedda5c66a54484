// Package chat implements the conversation reconciler: per-user conversation
// list and active-thread state kept consistent under interleaved local
// actions and asynchronous push events.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shopstream/storefront-platform/internal/model"
	"github.com/shopstream/storefront-platform/internal/notify"
	"github.com/shopstream/storefront-platform/internal/store"
	"github.com/shopstream/storefront-platform/pkg/logger"
	"github.com/shopstream/storefront-platform/pkg/metrics"
)

var (
	// ErrSelfConversation reports an attempt to open a thread with oneself.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")

	// ErrEmptyMessage reports whitespace-only message content. It is raised
	// before any backend call.
	ErrEmptyMessage = errors.New("message content cannot be empty")
)

// LoadError wraps a backend failure during conversation loading. It is
// surfaced to the user as a transient notification, never a crash.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load conversations: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// placeholderName stands in for a participant whose profile lookup failed.
const placeholderName = "Unknown User"

// Backend is the durable-store contract the reconciler consumes.
type Backend interface {
	store.ConversationStore
	store.MessageStore
	store.ProfileStore
}

// Publisher pushes chat events onto the realtime channel.
type Publisher interface {
	PublishEvent(ctx context.Context, ev *model.ChatEvent) error
}

// Subscription is a live realtime subscription.
type Subscription interface {
	Unsubscribe() error
}

// Feed is the push-event source. Delivery is at-least-once and unordered
// relative to store reads.
type Feed interface {
	Subscribe(handler func(model.ChatEvent)) (Subscription, error)
}

// Reconciler owns one signed-in user's conversation list and active message
// thread. All state is mutated either by the reconciler's own methods or by
// its event drain loop; nothing outside the package touches it.
type Reconciler struct {
	userID   string
	backend  Backend
	pub      Publisher
	feed     Feed
	notifier notify.Notifier
	logger   *logger.Logger

	mu        sync.Mutex
	summaries []model.ConversationSummary    // display order: last activity desc
	seen      map[string]map[string]struct{} // conversation id -> merged message ids
	thread    []model.Message
	activeID  string
	epoch     uint64 // bumped on every OpenConversation; guards stale loads

	events    chan model.ChatEvent
	listeners map[chan model.ChatEvent]struct{}
	sub       Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// NewReconciler creates a reconciler for the user. Call Start to attach the
// realtime feed and begin draining events.
func NewReconciler(userID string, backend Backend, pub Publisher, feed Feed, notifier notify.Notifier, log *logger.Logger) *Reconciler {
	return &Reconciler{
		userID:    userID,
		backend:   backend,
		pub:       pub,
		feed:      feed,
		notifier:  notifier,
		logger:    log.With(zap.String("user_id", userID)),
		seen:      make(map[string]map[string]struct{}),
		events:    make(chan model.ChatEvent, 256),
		listeners: make(map[chan model.ChatEvent]struct{}),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the realtime feed and starts the drain loop. The
// subscription is a single long-lived resource per session; Close releases
// it on every exit path.
func (r *Reconciler) Start() error {
	sub, err := r.feed.Subscribe(func(ev model.ChatEvent) {
		select {
		case r.events <- ev:
		default:
			// A full queue means the drain loop is stuck; dropping keeps the
			// publisher healthy and the durable copy is still in the store.
			metrics.ChatEventsDropped.Inc()
			r.logger.Warn("dropping chat event, queue full",
				zap.String("conversation_id", ev.Message.ConversationID),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to chat feed: %w", err)
	}
	r.sub = sub

	go r.drain()
	return nil
}

// Close unsubscribes from the realtime feed and stops the drain loop.
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		if r.sub != nil {
			if err := r.sub.Unsubscribe(); err != nil {
				r.logger.Warn("failed to unsubscribe chat feed", zap.Error(err))
			}
		}
		close(r.done)
	})
}

func (r *Reconciler) drain() {
	for {
		select {
		case ev := <-r.events:
			r.handleEvent(ev)
		case <-r.done:
			return
		}
	}
}

// LoadConversations fetches the user's conversations, each enriched with
// counterpart profile, last-message preview and unread count, ordered by most
// recent activity. A single failed profile lookup degrades that conversation's
// name to a placeholder instead of aborting the load.
func (r *Reconciler) LoadConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	convs, err := r.backend.ListConversationsForUser(ctx, r.userID)
	if err != nil {
		r.notifier.Error(r.userID, "Error loading conversations")
		return nil, &LoadError{Err: err}
	}

	summaries := make([]model.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, r.buildSummary(ctx, conv))
	}
	sortByActivity(summaries)

	r.mu.Lock()
	r.summaries = summaries
	out := snapshotSummaries(summaries)
	r.mu.Unlock()

	return out, nil
}

func (r *Reconciler) buildSummary(ctx context.Context, conv model.Conversation) model.ConversationSummary {
	participantID := conv.ParticipantFor(r.userID)

	s := model.ConversationSummary{
		ID:              conv.ID,
		ParticipantID:   participantID,
		ParticipantName: placeholderName,
	}

	profile, err := r.backend.GetProfile(ctx, participantID)
	if err != nil {
		r.logger.Warn("failed to load participant profile",
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
	} else {
		if profile.FullName != "" {
			s.ParticipantName = profile.FullName
		}
		s.ParticipantAvatar = profile.AvatarURL
	}

	last, err := r.backend.LastMessage(ctx, conv.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.LastMessage = model.LastMessageSummary{
			Text:      "No messages yet",
			Timestamp: conv.CreatedAt,
		}
	case err != nil:
		r.logger.Warn("failed to load last message",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
		s.LastMessage = model.LastMessageSummary{
			Text:      "No messages yet",
			Timestamp: conv.CreatedAt,
		}
	default:
		s.LastMessage = model.LastMessageSummary{
			Text:              last.Content,
			Timestamp:         last.CreatedAt,
			IsFromParticipant: last.SenderID == participantID,
		}
		r.mu.Lock()
		r.markSeen(conv.ID, last.ID)
		r.mu.Unlock()
	}

	unread, err := r.backend.CountUnread(ctx, conv.ID, participantID)
	if err != nil {
		r.logger.Warn("failed to count unread messages",
			zap.String("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
	s.UnreadCount = unread

	return s
}

// OpenConversation makes the conversation the active thread, loads its full
// ascending history and marks the counterpart's messages read. This is the
// only path that zeroes a conversation's unread count. If the active
// conversation changes while the history load is in flight, the stale
// response is discarded.
func (r *Reconciler) OpenConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	r.mu.Lock()
	r.activeID = conversationID
	r.epoch++
	myEpoch := r.epoch
	r.thread = nil
	var participantID string
	for i := range r.summaries {
		if r.summaries[i].ID == conversationID {
			r.summaries[i].UnreadCount = 0
			participantID = r.summaries[i].ParticipantID
			break
		}
	}
	r.mu.Unlock()

	if participantID == "" {
		conv, err := r.backend.GetConversation(ctx, conversationID)
		if err != nil {
			r.notifier.Error(r.userID, "Error loading messages")
			return nil, fmt.Errorf("failed to open conversation: %w", err)
		}
		participantID = conv.ParticipantFor(r.userID)
	}

	msgs, err := r.backend.ListMessages(ctx, conversationID)
	if err != nil {
		r.notifier.Error(r.userID, "Error loading messages")
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	// Push events may have been merged into the thread while the load was in
	// flight; fold the history into them instead of overwriting.
	r.mu.Lock()
	stale := r.epoch != myEpoch
	var thread []model.Message
	if !stale {
		merged := r.thread
		for i := range msgs {
			merged = mergeByID(merged, msgs[i])
			r.markSeen(conversationID, msgs[i].ID)
		}
		r.thread = merged
		thread = make([]model.Message, len(merged))
		copy(thread, merged)
	}
	r.mu.Unlock()

	// Mark-as-read is mirrored to the backend so reconciled and durable state
	// agree eventually. It happens even when the thread install was stale:
	// the user did open the conversation.
	updated, err := r.backend.MarkRead(ctx, conversationID, participantID, time.Now())
	if err != nil {
		r.logger.Warn("failed to mark messages read",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
	for i := range updated {
		ev := model.ChatEvent{Type: model.ChatEventMessageUpdated, Message: updated[i]}
		if err := r.pub.PublishEvent(ctx, &ev); err != nil {
			r.logger.Warn("failed to publish read receipt", zap.Error(err))
		}
	}

	if stale {
		return nil, nil
	}
	return thread, nil
}

// SendMessage validates and submits a message. The local thread is not
// updated here: the authoritative copy arrives through the push path like any
// remote message, which avoids duplicate entries at the cost of a brief
// latency before the sent message appears.
func (r *Reconciler) SendMessage(ctx context.Context, conversationID, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	msg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		SenderID:       r.userID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	if err := r.backend.InsertMessage(ctx, &msg); err != nil {
		r.notifier.Error(r.userID, "Error sending message")
		return fmt.Errorf("failed to send message: %w", err)
	}

	if err := r.backend.TouchConversation(ctx, conversationID, msg.CreatedAt); err != nil {
		r.logger.Warn("failed to touch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	ev := model.ChatEvent{Type: model.ChatEventMessageCreated, Message: msg}
	if err := r.pub.PublishEvent(ctx, &ev); err != nil {
		// The message is durable; only the realtime hint was lost. Readers
		// pick it up on their next load.
		r.logger.Warn("failed to publish message event", zap.Error(err))
	}

	metrics.MessagesTotal.Inc()
	return nil
}

// StartConversation returns the existing conversation with the other user in
// either role ordering, or creates one. Idempotent create is a correctness
// requirement: a duplicate conversation would split message history.
func (r *Reconciler) StartConversation(ctx context.Context, otherUserID string) (*model.Conversation, error) {
	if otherUserID == r.userID {
		return nil, ErrSelfConversation
	}

	existing, err := r.backend.FindConversationByPair(ctx, r.userID, otherUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		r.notifier.Error(r.userID, "Error checking for existing conversation")
		return nil, fmt.Errorf("failed to check for existing conversation: %w", err)
	}

	now := time.Now()
	conv := model.Conversation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		CustomerID: r.userID,
		SellerID:   otherUserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.backend.InsertConversation(ctx, &conv); err != nil {
		r.notifier.Error(r.userID, "Error creating conversation")
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	metrics.ConversationsTotal.Inc()

	summary := r.buildSummary(ctx, conv)
	r.mu.Lock()
	r.summaries = append([]model.ConversationSummary{summary}, r.summaries...)
	r.mu.Unlock()

	return &conv, nil
}

// Conversations returns the current conversation list snapshot, most recent
// activity first.
func (r *Reconciler) Conversations() []model.ConversationSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return snapshotSummaries(r.summaries)
}

// ActiveThread returns the active conversation id and its message snapshot.
func (r *Reconciler) ActiveThread() (string, []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Message, len(r.thread))
	copy(out, r.thread)
	return r.activeID, out
}

// Listen registers a listener for events this reconciler merges. The returned
// function removes the listener and must be called on every exit path.
func (r *Reconciler) Listen() (<-chan model.ChatEvent, func()) {
	ch := make(chan model.ChatEvent, 64)

	r.mu.Lock()
	r.listeners[ch] = struct{}{}
	r.mu.Unlock()

	remove := func() {
		r.mu.Lock()
		delete(r.listeners, ch)
		r.mu.Unlock()
	}
	return ch, remove
}

// handleEvent merges one push event into local state. Runs only on the drain
// goroutine.
func (r *Reconciler) handleEvent(ev model.ChatEvent) {
	msg := ev.Message

	r.mu.Lock()

	if msg.ConversationID == r.activeID {
		r.thread = mergeByID(r.thread, msg)
	}

	idx := -1
	for i := range r.summaries {
		if r.summaries[i].ID == msg.ConversationID {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		// The feed carries every conversation's events. Unknown id: either a
		// conversation the other party just started with us, or one we are
		// not part of at all.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		conv, err := r.backend.GetConversation(ctx, msg.ConversationID)
		if err != nil || !conv.Involves(r.userID) {
			return
		}
		if _, err := r.LoadConversations(ctx); err != nil {
			r.logger.Warn("failed to refresh conversations after push event", zap.Error(err))
		}
		r.forward(ev)
		return
	}

	s := &r.summaries[idx]

	// At-least-once delivery: a redelivery of any already-merged message must
	// not bump the unread count again, however old the message is.
	duplicate := ev.Type == model.ChatEventMessageCreated && !r.markSeen(msg.ConversationID, msg.ID)

	// Never let an out-of-order event regress the preview.
	if !msg.CreatedAt.Before(s.LastMessage.Timestamp) {
		s.LastMessage = model.LastMessageSummary{
			Text:              msg.Content,
			Timestamp:         msg.CreatedAt,
			IsFromParticipant: msg.SenderID == s.ParticipantID,
		}
	}

	if ev.Type == model.ChatEventMessageCreated && !duplicate &&
		msg.SenderID == s.ParticipantID && msg.ConversationID != r.activeID {
		s.UnreadCount++
	}

	sortByActivity(r.summaries)
	r.mu.Unlock()

	r.forward(ev)
}

// forward fans a merged event out to listeners without blocking the drain
// loop.
func (r *Reconciler) forward(ev model.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

// markSeen records the message id as merged for its conversation and reports
// whether it was new. Callers must hold r.mu.
func (r *Reconciler) markSeen(conversationID, messageID string) bool {
	set, ok := r.seen[conversationID]
	if !ok {
		set = make(map[string]struct{})
		r.seen[conversationID] = set
	}
	if _, dup := set[messageID]; dup {
		return false
	}
	set[messageID] = struct{}{}
	return true
}

// mergeByID replaces the message when its id is already present (edits,
// redeliveries), otherwise inserts it preserving ascending creation order.
func mergeByID(thread []model.Message, msg model.Message) []model.Message {
	for i := range thread {
		if thread[i].ID == msg.ID {
			thread[i] = msg
			return thread
		}
	}

	pos := sort.Search(len(thread), func(i int) bool {
		return thread[i].CreatedAt.After(msg.CreatedAt)
	})
	thread = append(thread, model.Message{})
	copy(thread[pos+1:], thread[pos:])
	thread[pos] = msg
	return thread
}

func sortByActivity(summaries []model.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.Timestamp.After(summaries[j].LastMessage.Timestamp)
	})
}

func snapshotSummaries(summaries []model.ConversationSummary) []model.ConversationSummary {
	out := make([]model.ConversationSummary, len(summaries))
	copy(out, summaries)
	return out
}
