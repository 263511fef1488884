package media

import (
	"context"
	"io"
)

// MediaType is the stored media type tag.
type MediaType string

const (
	MediaTypePhoto     MediaType = "photo"
	MediaTypeVideo     MediaType = "video"
	MediaTypeDocument  MediaType = "document"
	MediaTypeAudio     MediaType = "audio"
	MediaTypeVoice     MediaType = "voice"
	MediaTypeAnimation MediaType = "animation"
	MediaTypeSticker   MediaType = "sticker"
)

func (t MediaType) String() string { return string(t) }

// Metadata is the normalized attachment record stored verbatim in media.metadata.
// Absent provider fields stay nil and are omitted from JSON.
type Metadata struct {
	MediaGroupID string `json:"media_group_id,omitempty"`
	MessageID    int    `json:"message_id"`
	ChatID       int64  `json:"chat_id,omitempty"`
	Caption      string `json:"caption,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	Width        *int   `json:"width,omitempty"`
	Height       *int   `json:"height,omitempty"`
	Duration     *int   `json:"duration,omitempty"`
	FileSize     *int64 `json:"file_size,omitempty"`
	FileID       string `json:"file_id,omitempty"`
	FileUniqueID string `json:"file_unique_id,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	SetName      string `json:"set_name,omitempty"`
	Performer    string `json:"performer,omitempty"`
	Title        string `json:"title,omitempty"`
	// Date and EditDate are the provider's unix timestamps.
	Date     int64  `json:"date,omitempty"`
	EditDate *int64 `json:"edit_date,omitempty"`
}

// StorageProvider abstracts the binary object store.
type StorageProvider interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Open returns a reader for the given key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// PublicURL returns the consumer-facing URL for key.
	PublicURL(key string) string
}
