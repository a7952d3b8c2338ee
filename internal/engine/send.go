package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/model"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
)

// SendText encodes plaintext, writes the message to the remote store and
// updates the conversation's last-message projection. There is no optimistic
// local echo: the message reaches the timeline through the subscription once
// the remote store fans it out. The returned message carries the plaintext
// body and the server-assigned id; on failure nothing is exposed.
func (e *Engine) SendText(ctx context.Context, conversationID, plaintext string) (model.Message, error) {
	user, ok := e.ident.Current()
	if !ok {
		return model.Message{}, model.ErrNotAuthenticated
	}

	encoded, err := e.codec.Encode(plaintext)
	if err != nil {
		return model.Message{}, err
	}

	msg := model.Message{
		ConversationID: conversationID,
		SenderID:       user.ID,
		SenderName:     user.DisplayName,
		SenderEmail:    user.Email,
		Body:           encoded,
		Type:           model.ContentText,
	}
	sent, err := e.sendMessage(ctx, msg)
	if err != nil {
		return model.Message{}, err
	}
	sent.Body = plaintext
	return sent, nil
}

// SendImage sends an already uploaded image reference. The body is empty;
// the preview on the conversation is suppressed for images.
func (e *Engine) SendImage(ctx context.Context, conversationID, imageURL string) (model.Message, error) {
	user, ok := e.ident.Current()
	if !ok {
		return model.Message{}, model.ErrNotAuthenticated
	}

	msg := model.Message{
		ConversationID: conversationID,
		SenderID:       user.ID,
		SenderName:     user.DisplayName,
		SenderEmail:    user.Email,
		ImageURL:       imageURL,
		Type:           model.ContentImage,
	}
	return e.sendMessage(ctx, msg)
}

// UploadAndSendImage uploads a local image under the conversation's bucket
// key and sends the resulting URL.
func (e *Engine) UploadAndSendImage(ctx context.Context, conversationID, localPath string) (model.Message, error) {
	if _, ok := e.ident.Current(); !ok {
		return model.Message{}, model.ErrNotAuthenticated
	}

	upCtx, cancel := e.bounded(ctx)
	defer cancel()
	url, err := e.uploader.Upload(upCtx, conversationID, localPath)
	if err != nil {
		return model.Message{}, remoteErr("write", err)
	}
	return e.SendImage(ctx, conversationID, url)
}

// sendMessage performs the two remote writes of the send path: the message
// document, then the parent conversation's denormalized projection. Both are
// bounded by the configured remote timeout.
func (e *Engine) sendMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	ctx, cancel := e.bounded(ctx)
	defer cancel()

	fields := model.MessageFields(msg)
	fields["timestamp"] = remote.ServerTimestamp

	id, err := e.store.Create(ctx, registry.MessagesPath(msg.ConversationID), fields)
	if err != nil {
		return model.Message{}, remoteErr("write", err)
	}
	msg.ID = id

	if err := e.updateLastMessage(ctx, msg); err != nil {
		return model.Message{}, err
	}

	e.logger.Info("message sent",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", id))
	return msg, nil
}

// updateLastMessage writes the denormalized projection on the conversation.
// Image messages store an empty content preview; the read flag is forced
// false and the timestamp is server-assigned.
func (e *Engine) updateLastMessage(ctx context.Context, msg model.Message) error {
	preview := msg.Body
	if msg.Type == model.ContentImage {
		preview = ""
	}
	err := e.store.Update(ctx, "chats", msg.ConversationID, map[string]any{
		"lastMessageContent":     preview,
		"lastMessageSenderId":    msg.SenderID,
		"lastMessageSenderName":  msg.SenderName,
		"lastMessageSenderEmail": msg.SenderEmail,
		"lastMessageTimestamp":   remote.ServerTimestamp,
		"lastMessageRead":        false,
		"lastMessageType":        int64(msg.Type),
	})
	if err != nil {
		return remoteErr("write", err)
	}
	e.publish(bus.KindConversationUpdated, msg.ConversationID)
	return nil
}
