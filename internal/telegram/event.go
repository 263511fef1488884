// Package telegram decodes Bot API webhook updates into ingestion events and talks
// to the Bot API file endpoints.
package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageType tags which update field carried the message.
type MessageType string

const (
	MessageTypeChannelPost       MessageType = "channel_post"
	MessageTypeEditedChannelPost MessageType = "edited_channel_post"
	MessageTypeMessage           MessageType = "message"
	MessageTypeEditedMessage     MessageType = "edited_message"
	MessageTypeUnknown           MessageType = "unknown"
)

func (t MessageType) String() string { return string(t) }

// ErrMalformedPayload is returned when the webhook body is not a valid update.
var ErrMalformedPayload = errors.New("malformed update payload")

// Event is the classified update. Message is nil for MessageTypeUnknown.
type Event struct {
	Type     MessageType
	UpdateID int
	Message  *tgbotapi.Message
}

// Empty reports whether there is nothing to ingest.
func (e Event) Empty() bool {
	return e.Message == nil || e.Message.Chat == nil
}

// IsEdit reports whether the event is an edit of an earlier message or post.
func (e Event) IsEdit() bool {
	return e.Type == MessageTypeEditedChannelPost || e.Type == MessageTypeEditedMessage
}

// Classify decodes a webhook body. Precedence when several fields are set:
// edited_channel_post, channel_post, edited_message, message.
func Classify(body []byte) (Event, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return ClassifyUpdate(update), nil
}

// ClassifyUpdate tags an already decoded update.
func ClassifyUpdate(update tgbotapi.Update) Event {
	event := Event{Type: MessageTypeUnknown, UpdateID: update.UpdateID}
	switch {
	case update.EditedChannelPost != nil:
		event.Type, event.Message = MessageTypeEditedChannelPost, update.EditedChannelPost
	case update.ChannelPost != nil:
		event.Type, event.Message = MessageTypeChannelPost, update.ChannelPost
	case update.EditedMessage != nil:
		event.Type, event.Message = MessageTypeEditedMessage, update.EditedMessage
	case update.Message != nil:
		event.Type, event.Message = MessageTypeMessage, update.Message
	}
	return event
}

// SenderLabel picks a display name: the user's username or full name, then the
// sender chat, then the chat title.
func SenderLabel(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.From != nil {
		if name := strings.TrimSpace(msg.From.UserName); name != "" {
			return name
		}
		if name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName); name != "" {
			return name
		}
	}
	if msg.SenderChat != nil {
		if title := strings.TrimSpace(msg.SenderChat.Title); title != "" {
			return title
		}
		if name := strings.TrimSpace(msg.SenderChat.UserName); name != "" {
			return name
		}
	}
	if msg.Chat != nil {
		if title := strings.TrimSpace(msg.Chat.Title); title != "" {
			return title
		}
		if name := strings.TrimSpace(msg.Chat.UserName); name != "" {
			return name
		}
	}
	return "Unknown"
}

// ChatTitle returns the chat title, falling back to username or the private chat's name.
func ChatTitle(chat *tgbotapi.Chat) string {
	if chat == nil {
		return ""
	}
	if title := strings.TrimSpace(chat.Title); title != "" {
		return title
	}
	if name := strings.TrimSpace(chat.UserName); name != "" {
		return name
	}
	if name := strings.TrimSpace(chat.FirstName + " " + chat.LastName); name != "" {
		return name
	}
	return fmt.Sprintf("chat %d", chat.ID)
}

// MessageCaption is the caption, or the message text when no caption is set.
func MessageCaption(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if c := strings.TrimSpace(msg.Caption); c != "" {
		return c
	}
	return strings.TrimSpace(msg.Text)
}
