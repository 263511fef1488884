// Package events publishes stored activity entries to a message broker.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/mediavault/mediavault/internal/store"
)

// Producer identifies this service in event metadata.
const Producer = "mediavault"

// Meta is the envelope header shared by every event.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

// Envelope wraps an event payload with its metadata.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// ActivityData is the payload of an activity event.
type ActivityData struct {
	EventType   string         `json:"event_type"`
	ChatID      int64          `json:"chat_id"`
	MessageID   int            `json:"message_id"`
	MessageType string         `json:"message_type,omitempty"`
	OwnerID     string         `json:"user_id"`
	Details     map[string]any `json:"details,omitempty"`
}

// EventType maps an activity event name to its versioned routing key,
// e.g. "activity.media_saved.v1".
func EventType(activityType string) string {
	return "activity." + activityType + ".v1"
}

// NewActivityEnvelope builds the envelope for one activity entry.
func NewActivityEnvelope(a store.Activity, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{
			ID:       uuid.NewString(),
			Type:     EventType(a.EventType),
			Time:     now.UTC(),
			Producer: Producer,
		},
		Data: ActivityData{
			EventType:   a.EventType,
			ChatID:      a.ChatID,
			MessageID:   a.MessageID,
			MessageType: a.MessageType,
			OwnerID:     a.OwnerID.String(),
			Details:     a.Details,
		},
	}
}
