package model

// Document field names follow the remote schema. The conversion helpers below
// are the single place where model types meet the schemaless document layer;
// missing or mistyped fields fall back to zero values rather than failing.

func asString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func asBool(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func asInt64(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func asStrings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// MessageFields flattens a message for a remote write. The timestamp is not
// included; the caller substitutes the server timestamp sentinel.
func MessageFields(m Message) map[string]any {
	return map[string]any{
		"chatId":      m.ConversationID,
		"senderId":    m.SenderID,
		"senderName":  m.SenderName,
		"senderEmail": m.SenderEmail,
		"content":     m.Body,
		"imageUrl":    m.ImageURL,
		"messageType": int64(m.Type),
		"read":        m.Read,
	}
}

// MessageFromDoc rebuilds a message from remote document fields.
func MessageFromDoc(id string, fields map[string]any) Message {
	return Message{
		ID:             id,
		ConversationID: asString(fields, "chatId"),
		SenderID:       asString(fields, "senderId"),
		SenderName:     asString(fields, "senderName"),
		SenderEmail:    asString(fields, "senderEmail"),
		Body:           asString(fields, "content"),
		ImageURL:       asString(fields, "imageUrl"),
		Type:           ContentType(asInt64(fields, "messageType")),
		Timestamp:      asInt64(fields, "timestamp"),
		Read:           asBool(fields, "read"),
	}
}

// ConversationFields flattens a conversation for a remote write.
func ConversationFields(c Conversation) map[string]any {
	return map[string]any{
		"participantIds":         c.ParticipantIDs,
		"groupChat":              c.Group,
		"chatName":               c.Name,
		"chatImageUrl":           c.ImageURL,
		"lastMessageContent":     c.LastMessageContent,
		"lastMessageSenderId":    c.LastMessageSenderID,
		"lastMessageSenderName":  c.LastMessageSenderName,
		"lastMessageSenderEmail": c.LastMessageSenderEmail,
		"lastMessageTimestamp":   c.LastMessageTimestamp,
		"lastMessageRead":        c.LastMessageRead,
		"lastMessageType":        int64(c.LastMessageType),
	}
}

// ConversationFromDoc rebuilds a conversation from remote document fields.
func ConversationFromDoc(id string, fields map[string]any) Conversation {
	return Conversation{
		ID:                     id,
		ParticipantIDs:         asStrings(fields, "participantIds"),
		Group:                  asBool(fields, "groupChat"),
		Name:                   asString(fields, "chatName"),
		ImageURL:               asString(fields, "chatImageUrl"),
		LastMessageContent:     asString(fields, "lastMessageContent"),
		LastMessageSenderID:    asString(fields, "lastMessageSenderId"),
		LastMessageSenderName:  asString(fields, "lastMessageSenderName"),
		LastMessageSenderEmail: asString(fields, "lastMessageSenderEmail"),
		LastMessageTimestamp:   asInt64(fields, "lastMessageTimestamp"),
		LastMessageRead:        asBool(fields, "lastMessageRead"),
		LastMessageType:        ContentType(asInt64(fields, "lastMessageType")),
	}
}

// PresenceFields flattens a presence record for a remote write.
func PresenceFields(p Presence) map[string]any {
	return map[string]any{
		"displayName":    p.DisplayName,
		"email":          p.Email,
		"photoUrl":       p.PhotoURL,
		"online":         p.Online,
		"lastOnline":     p.LastOnline,
		"fcmToken":       p.PushToken,
		"tokenUpdatedAt": p.TokenUpdatedAt,
	}
}

// PresenceFromDoc rebuilds a presence record from remote document fields.
func PresenceFromDoc(id string, fields map[string]any) Presence {
	return Presence{
		UserID:         id,
		DisplayName:    asString(fields, "displayName"),
		Email:          asString(fields, "email"),
		PhotoURL:       asString(fields, "photoUrl"),
		Online:         asBool(fields, "online"),
		LastOnline:     asInt64(fields, "lastOnline"),
		PushToken:      asString(fields, "fcmToken"),
		TokenUpdatedAt: asInt64(fields, "tokenUpdatedAt"),
	}
}
