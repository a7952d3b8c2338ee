package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

func userChatsPath(userID string) string {
	return "userchats/" + userID + "/chats"
}

// CreateDirectConversation starts a two-party conversation between the
// current user and another. Participants are fixed at creation.
func (e *Engine) CreateDirectConversation(ctx context.Context, otherUserID string) (model.Conversation, error) {
	user, ok := e.ident.Current()
	if !ok {
		return model.Conversation{}, model.ErrNotAuthenticated
	}
	return e.createConversation(ctx, model.Conversation{
		ParticipantIDs: []string{user.ID, otherUserID},
	})
}

// CreateGroupConversation starts a group conversation. A display name is
// required; the current user is always a participant.
func (e *Engine) CreateGroupConversation(ctx context.Context, name string, participantIDs []string) (model.Conversation, error) {
	user, ok := e.ident.Current()
	if !ok {
		return model.Conversation{}, model.ErrNotAuthenticated
	}
	if name == "" {
		return model.Conversation{}, errors.New("group conversation requires a name")
	}

	ids := []string{user.ID}
	for _, id := range participantIDs {
		if id != user.ID {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return model.Conversation{}, fmt.Errorf("group conversation requires at least 2 participants, got %d", len(ids))
	}
	return e.createConversation(ctx, model.Conversation{
		ParticipantIDs: ids,
		Group:          true,
		Name:           name,
	})
}

// createConversation writes the conversation document, then fans out one
// index record per participant. The fan-out is best-effort parallel; partial
// failure is surfaced as an aggregate error with the conversation already
// created.
func (e *Engine) createConversation(ctx context.Context, conv model.Conversation) (model.Conversation, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	id, err := e.store.Create(ctx, "chats", model.ConversationFields(conv))
	if err != nil {
		return model.Conversation{}, remoteErr("write", err)
	}
	conv.ID = id

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, uid := range conv.ParticipantIDs {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			err := e.store.Set(ctx, userChatsPath(uid), id, map[string]any{
				"chatId":    id,
				"timestamp": remote.ServerTimestamp,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, remoteErr("write", err))
				mu.Unlock()
			}
		}(uid)
	}
	wg.Wait()

	if len(errs) > 0 {
		return conv, errors.Join(errs...)
	}
	e.logger.Info("conversation created",
		zap.String("conversation_id", id), zap.Bool("group", conv.Group))
	return conv, nil
}

// Conversations lists the current user's conversations, most recently
// active first.
func (e *Engine) Conversations(ctx context.Context) ([]model.Conversation, error) {
	user, ok := e.ident.Current()
	if !ok {
		return nil, model.ErrNotAuthenticated
	}

	ctx, cancel := e.bounded(ctx)
	defer cancel()
	docs, err := e.store.Query(ctx, remote.Query{
		Path:       "chats",
		Filters:    []remote.Filter{{Field: "participantIds", Op: "array-contains", Value: user.ID}},
		OrderBy:    "lastMessageTimestamp",
		Descending: true,
	})
	if err != nil {
		return nil, remoteErr("read", err)
	}

	convs := make([]model.Conversation, 0, len(docs))
	for _, d := range docs {
		convs = append(convs, model.ConversationFromDoc(d.ID, d.Fields))
	}
	return convs, nil
}

// WatchConversations keeps the current user's conversation list live. Each
// remote change delivers the full re-ordered list.
func (e *Engine) WatchConversations(onChange func([]model.Conversation)) error {
	user, ok := e.ident.Current()
	if !ok {
		return model.ErrNotAuthenticated
	}
	return e.reg.SubscribeConversations(user.ID, func(convs []model.Conversation) {
		e.publish(bus.KindConversationList, len(convs))
		if onChange != nil {
			onChange(convs)
		}
	})
}

// UnwatchConversations detaches the conversation-list watch.
func (e *Engine) UnwatchConversations() {
	if user, ok := e.ident.Current(); ok {
		e.reg.UnsubscribeConversations(user.ID)
	}
}

// GetConversation fetches one conversation by id.
func (e *Engine) GetConversation(ctx context.Context, conversationID string) (model.Conversation, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()
	doc, ok, err := e.store.Get(ctx, "chats", conversationID)
	if err != nil {
		return model.Conversation{}, remoteErr("read", err)
	}
	if !ok {
		return model.Conversation{}, fmt.Errorf("conversation %s: %w", conversationID, model.ErrNotFound)
	}
	return model.ConversationFromDoc(doc.ID, doc.Fields), nil
}

// PreviewText returns the display form of a conversation's last-message
// preview: lenient-decoded for text (raw on codec failure), empty for
// images.
func (e *Engine) PreviewText(c model.Conversation) string {
	if c.LastMessageType == model.ContentImage || c.LastMessageContent == "" {
		return ""
	}
	plain, err := e.codec.DecodeLenient(c.LastMessageContent)
	if err != nil {
		return c.LastMessageContent
	}
	return plain
}
