package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/mediavault/internal/media"
)

// Channel is a source chat keyed by its Telegram chat id.
type Channel struct {
	ChatID   int64
	Title    string
	Username string
	ChatType string
	IsActive bool
	OwnerID  uuid.UUID
}

// Message is one inbound message keyed by (ChatID, MessageID).
type Message struct {
	ChatID      int64
	MessageID   int
	SenderName  string
	Text        string
	MessageType string
	OwnerID     uuid.UUID
}

// MediaItem is one stored binary asset.
type MediaItem struct {
	ID           uuid.UUID
	FileName     string
	FileURL      string
	MediaType    media.MediaType
	Caption      string
	MediaGroupID string
	Metadata     media.Metadata
	ChatID       int64
	MessageID    int
	OwnerID      uuid.UUID
	CreatedAt    time.Time
}

// Activity is an append-only audit entry.
type Activity struct {
	EventType   string
	ChatID      int64
	MessageID   int
	MessageType string
	OwnerID     uuid.UUID
	Details     map[string]any
}

const (
	EventMessageReceived = "message_received"
	EventMediaSaved      = "media_saved"
)
