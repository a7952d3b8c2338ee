// Package registry owns every live remote subscription of a session: one per
// conversation for messages, one per user for presence, one per user for the
// conversation list. Subscribe is idempotent and last-writer-wins; each
// subscription carries a generation number and deliveries from a torn-down
// generation are dropped, so cancellation is effective immediately even for
// notifications already in flight.
package registry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

// MessageCallbacks receives the classified change feed of one conversation.
// OnSnapshot is always delivered first, with the initial window newest-first.
// OnAdded fires only for messages landing at the head of the window: an
// added event for a back-filled older message is a pagination artifact, not
// a live arrival, and is not forwarded.
type MessageCallbacks struct {
	OnSnapshot func(newestFirst []model.Message)
	OnAdded    func(model.Message)
	OnModified func(model.Message)
}

type handle struct {
	gen    uint64
	cancel remote.CancelFunc
}

func (h *handle) detach() {
	if h != nil && h.cancel != nil {
		h.cancel()
	}
}

// Registry is process-wide, one per logged-in session. Safe for concurrent
// subscribe/unsubscribe from different conversation screens.
type Registry struct {
	store  remote.Store
	logger *zap.Logger

	mu        sync.Mutex
	gen       uint64
	messages  map[string]*handle // conversation id
	users     map[string]*handle // user id, presence
	convLists map[string]*handle // user id, conversation list
}

// New creates an empty registry over the given remote store.
func New(store remote.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:     store,
		logger:    logger,
		messages:  make(map[string]*handle),
		users:     make(map[string]*handle),
		convLists: make(map[string]*handle),
	}
}

// MessagesPath returns the remote collection path of a conversation's
// messages.
func MessagesPath(conversationID string) string {
	return "chats/" + conversationID + "/messages"
}

// SubscribeMessages attaches the message feed of one conversation. An
// existing subscription for the same conversation is torn down first; its
// pending deliveries are discarded by the generation check.
func (r *Registry) SubscribeMessages(conversationID string, limit int, cb MessageCallbacks) error {
	q := remote.Query{
		Path:       MessagesPath(conversationID),
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	}

	h := r.install(r.messages, conversationID)
	cancel, err := r.store.Subscribe(q, func(snap remote.Snapshot) {
		if !r.live(r.messages, conversationID, h) {
			return
		}
		if snap.Initial {
			if cb.OnSnapshot != nil {
				msgs := make([]model.Message, 0, len(snap.Docs))
				for _, d := range snap.Docs {
					msgs = append(msgs, model.MessageFromDoc(d.ID, d.Fields))
				}
				cb.OnSnapshot(msgs)
			}
			return
		}
		for _, change := range snap.Changes {
			if !r.live(r.messages, conversationID, h) {
				return
			}
			m := model.MessageFromDoc(change.Doc.ID, change.Doc.Fields)
			switch change.Kind {
			case remote.Added:
				if change.NewIndex == 0 && cb.OnAdded != nil {
					cb.OnAdded(m)
				}
			case remote.Modified:
				if cb.OnModified != nil {
					cb.OnModified(m)
				}
			}
		}
	})
	return r.attach(r.messages, conversationID, h, cancel, err)
}

// UnsubscribeMessages detaches the message subscription of a conversation.
// No-op when none exists.
func (r *Registry) UnsubscribeMessages(conversationID string) {
	r.mu.Lock()
	h := r.messages[conversationID]
	delete(r.messages, conversationID)
	r.mu.Unlock()
	h.detach()
}

// SubscribeUser watches one user's presence record. Every remote update is
// delivered verbatim; formatting is the rendering layer's concern.
func (r *Registry) SubscribeUser(userID string, onChange func(model.Presence)) error {
	h := r.install(r.users, userID)
	cancel, err := r.store.SubscribeDoc("users", userID, func(doc remote.Doc) {
		if !r.live(r.users, userID, h) {
			return
		}
		onChange(model.PresenceFromDoc(doc.ID, doc.Fields))
	})
	return r.attach(r.users, userID, h, cancel, err)
}

// UnsubscribeUser detaches a presence watch. No-op when none exists.
func (r *Registry) UnsubscribeUser(userID string) {
	r.mu.Lock()
	h := r.users[userID]
	delete(r.users, userID)
	r.mu.Unlock()
	h.detach()
}

// SubscribeConversations watches the conversation list of a user, ordered by
// last-message timestamp descending. Each delivery carries the full
// re-ordered list.
func (r *Registry) SubscribeConversations(userID string, onChange func([]model.Conversation)) error {
	q := remote.Query{
		Path:       "chats",
		Filters:    []remote.Filter{{Field: "participantIds", Op: "array-contains", Value: userID}},
		OrderBy:    "lastMessageTimestamp",
		Descending: true,
	}

	h := r.install(r.convLists, userID)
	cancel, err := r.store.Subscribe(q, func(snap remote.Snapshot) {
		if !r.live(r.convLists, userID, h) {
			return
		}
		convs := make([]model.Conversation, 0, len(snap.Docs))
		for _, d := range snap.Docs {
			convs = append(convs, model.ConversationFromDoc(d.ID, d.Fields))
		}
		onChange(convs)
	})
	return r.attach(r.convLists, userID, h, cancel, err)
}

// UnsubscribeConversations detaches a conversation-list watch.
func (r *Registry) UnsubscribeConversations(userID string) {
	r.mu.Lock()
	h := r.convLists[userID]
	delete(r.convLists, userID)
	r.mu.Unlock()
	h.detach()
}

// UnsubscribeAll tears down every live subscription of every kind. Used when
// leaving the surface that owns the engine.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	var all []*handle
	for id, h := range r.messages {
		all = append(all, h)
		delete(r.messages, id)
	}
	for id, h := range r.users {
		all = append(all, h)
		delete(r.users, id)
	}
	for id, h := range r.convLists {
		all = append(all, h)
		delete(r.convLists, id)
	}
	r.mu.Unlock()
	for _, h := range all {
		h.detach()
	}
	r.logger.Debug("all subscriptions detached", zap.Int("count", len(all)))
}

// Active returns the total number of live subscriptions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages) + len(r.users) + len(r.convLists)
}

// install replaces any existing handle for id with a fresh generation and
// returns it. The old subscription is detached; its generation is dead from
// this point on.
func (r *Registry) install(m map[string]*handle, id string) *handle {
	r.mu.Lock()
	old := m[id]
	r.gen++
	h := &handle{gen: r.gen}
	m[id] = h
	r.mu.Unlock()
	old.detach()
	return h
}

// attach stores the cancel function on h if h is still the live handle for
// id; a racing re-subscribe wins and the new subscription is cancelled.
func (r *Registry) attach(m map[string]*handle, id string, h *handle, cancel remote.CancelFunc, err error) error {
	if err != nil {
		r.mu.Lock()
		if m[id] == h {
			delete(m, id)
		}
		r.mu.Unlock()
		return &model.RemoteError{Op: "read", Err: err}
	}
	r.mu.Lock()
	if m[id] == h {
		h.cancel = cancel
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	cancel()
	return nil
}

// live reports whether h is still the current generation for id.
func (r *Registry) live(m map[string]*handle, id string, h *handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m[id] == h
}
