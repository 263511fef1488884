package telegram

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestClassifyPrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		body     string
		wantType MessageType
		wantChat int64
	}{
		{
			name:     "edited channel post beats channel post",
			body:     `{"update_id":1,"channel_post":{"message_id":1,"date":1,"chat":{"id":-100,"type":"channel"}},"edited_channel_post":{"message_id":1,"date":1,"edit_date":2,"chat":{"id":-200,"type":"channel"}}}`,
			wantType: MessageTypeEditedChannelPost,
			wantChat: -200,
		},
		{
			name:     "channel post beats edited message",
			body:     `{"update_id":2,"edited_message":{"message_id":2,"date":1,"chat":{"id":5,"type":"private"}},"channel_post":{"message_id":3,"date":1,"chat":{"id":-300,"type":"channel"}}}`,
			wantType: MessageTypeChannelPost,
			wantChat: -300,
		},
		{
			name:     "edited message beats message",
			body:     `{"update_id":3,"message":{"message_id":4,"date":1,"chat":{"id":6,"type":"private"}},"edited_message":{"message_id":4,"date":1,"chat":{"id":7,"type":"private"}}}`,
			wantType: MessageTypeEditedMessage,
			wantChat: 7,
		},
		{
			name:     "plain message",
			body:     `{"update_id":4,"message":{"message_id":5,"date":1,"chat":{"id":8,"type":"group"}}}`,
			wantType: MessageTypeMessage,
			wantChat: 8,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			event, err := Classify([]byte(tc.body))
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if event.Type != tc.wantType {
				t.Fatalf("type = %s, want %s", event.Type, tc.wantType)
			}
			if event.Empty() {
				t.Fatal("event should not be empty")
			}
			if event.Message.Chat.ID != tc.wantChat {
				t.Fatalf("chat = %d, want %d", event.Message.Chat.ID, tc.wantChat)
			}
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`{"update_id":9}`, `{"update_id":10,"callback_query":{"id":"x"}}`, `{}`} {
		event, err := Classify([]byte(body))
		if err != nil {
			t.Fatalf("Classify(%s): %v", body, err)
		}
		if event.Type != MessageTypeUnknown || !event.Empty() {
			t.Fatalf("Classify(%s) = %+v, want empty unknown", body, event)
		}
	}
}

func TestClassifyMalformed(t *testing.T) {
	t.Parallel()

	_, err := Classify([]byte(`{"update_id":`))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestEventIsEdit(t *testing.T) {
	t.Parallel()

	if !(Event{Type: MessageTypeEditedMessage}).IsEdit() {
		t.Fatal("edited_message should be an edit")
	}
	if (Event{Type: MessageTypeChannelPost}).IsEdit() {
		t.Fatal("channel_post should not be an edit")
	}
}

func TestSenderLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  *tgbotapi.Message
		want string
	}{
		{name: "nil", msg: nil, want: ""},
		{name: "username", msg: &tgbotapi.Message{From: &tgbotapi.User{ID: 1, UserName: "alice", FirstName: "Alice"}}, want: "alice"},
		{name: "full name", msg: &tgbotapi.Message{From: &tgbotapi.User{ID: 1, FirstName: "Alice", LastName: "Smith"}}, want: "Alice Smith"},
		{name: "sender chat", msg: &tgbotapi.Message{SenderChat: &tgbotapi.Chat{ID: 2, Title: "News"}}, want: "News"},
		{name: "channel title", msg: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3, Title: "Photos"}}, want: "Photos"},
		{name: "nothing", msg: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 4}}, want: "Unknown"},
	}
	for _, tc := range cases {
		if got := SenderLabel(tc.msg); got != tc.want {
			t.Errorf("%s: SenderLabel = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestChatTitleAndCaption(t *testing.T) {
	t.Parallel()

	if got := ChatTitle(&tgbotapi.Chat{ID: 42, FirstName: "Bob"}); got != "Bob" {
		t.Fatalf("ChatTitle = %q", got)
	}
	if got := ChatTitle(&tgbotapi.Chat{ID: 42}); got != "chat 42" {
		t.Fatalf("ChatTitle = %q", got)
	}
	if got := MessageCaption(&tgbotapi.Message{Caption: " hi ", Text: "ignored"}); got != "hi" {
		t.Fatalf("MessageCaption = %q", got)
	}
	if got := MessageCaption(&tgbotapi.Message{Text: "text body"}); got != "text body" {
		t.Fatalf("MessageCaption = %q", got)
	}
}
