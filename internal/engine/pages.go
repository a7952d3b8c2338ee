package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

// FirstPage fetches the pageSize newest messages of a conversation,
// newest-first.
func (e *Engine) FirstPage(ctx context.Context, conversationID string, pageSize int) ([]model.Message, error) {
	return e.page(ctx, conversationID, 0, pageSize)
}

// NextPage fetches up to pageSize messages strictly older than
// afterTimestamp, newest-first. The boundary message itself never reappears;
// overlap from equal timestamps between adjacent pages is absorbed by the
// timeline's identifier-based de-duplication, never by timestamp exclusivity
// alone.
func (e *Engine) NextPage(ctx context.Context, conversationID string, afterTimestamp int64, pageSize int) ([]model.Message, error) {
	return e.page(ctx, conversationID, afterTimestamp, pageSize)
}

func (e *Engine) page(ctx context.Context, conversationID string, after int64, pageSize int) ([]model.Message, error) {
	if pageSize <= 0 {
		pageSize = e.cfg.PageSize
	}
	q := remote.Query{
		Path:       registry.MessagesPath(conversationID),
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      pageSize,
	}
	if after > 0 {
		q.StartAfter = after
	}

	ctx, cancel := e.bounded(ctx)
	defer cancel()
	docs, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, remoteErr("read", err)
	}

	msgs := make([]model.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, e.decodeMessage(model.MessageFromDoc(d.ID, d.Fields)))
	}
	return msgs, nil
}

// LoadOlder fetches the page preceding the open timeline's oldest message
// and prepends it. Returns how many messages were actually inserted; zero
// means the history is exhausted.
func (e *Engine) LoadOlder(ctx context.Context, conversationID string) (int, error) {
	tl := e.Timeline(conversationID)
	if tl == nil {
		return 0, model.ErrNotFound
	}

	cursor := tl.OldestTimestamp()
	var (
		page []model.Message
		err  error
	)
	if cursor == 0 {
		page, err = e.FirstPage(ctx, conversationID, e.cfg.PageSize)
	} else {
		page, err = e.NextPage(ctx, conversationID, cursor, e.cfg.PageSize)
	}
	if err != nil {
		return 0, err
	}

	n := tl.Prepend(page)
	if n > 0 {
		e.publish(bus.KindTimelineReset, conversationID)
		e.logger.Debug("older page loaded",
			zap.String("conversation_id", conversationID), zap.Int("inserted", n))
	}
	return n, nil
}
