package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

// MarkRead flags the conversation's last-message projection as read, then
// sweeps every unread message not authored by the current user. The sweep is
// best-effort parallel: partial completion leaves the conversation flagged
// read with some messages still unread, which is a degraded state the next
// invocation repairs. Calling twice in a row is a no-op the second time.
func (e *Engine) MarkRead(ctx context.Context, conversationID string) error {
	user, ok := e.ident.Current()
	if !ok {
		return model.ErrNotAuthenticated
	}

	ctx, cancel := e.bounded(ctx)
	defer cancel()

	// Conversation-level flag first; the per-message sweep may be resumed.
	if err := e.store.Update(ctx, "chats", conversationID, map[string]any{
		"lastMessageRead": true,
	}); err != nil {
		return remoteErr("write", err)
	}

	docs, err := e.store.Query(ctx, remote.Query{
		Path: registry.MessagesPath(conversationID),
		Filters: []remote.Filter{
			{Field: "read", Op: "==", Value: false},
			{Field: "senderId", Op: "!=", Value: user.ID},
		},
	})
	if err != nil {
		return remoteErr("read", err)
	}
	if len(docs) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, doc := range docs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := e.store.Update(ctx, registry.MessagesPath(conversationID), id, map[string]any{
				"read": true,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, remoteErr("write", err))
				mu.Unlock()
			}
		}(doc.ID)
	}
	wg.Wait()

	if len(errs) > 0 {
		e.logger.Warn("read sweep incomplete",
			zap.String("conversation_id", conversationID),
			zap.Int("failed", len(errs)), zap.Int("total", len(docs)))
		return errors.Join(errs...)
	}
	return nil
}
