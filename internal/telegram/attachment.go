package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/mediavault/internal/media"
)

// Attachment is the normalized descriptor of the single media item a message carries.
type Attachment struct {
	Kind         media.MediaType
	FileID       string
	FileUniqueID string
	MimeType     string
	FileName     string
	Width        *int
	Height       *int
	Duration     *int
	FileSize     *int64
	Emoji        string
	SetName      string
	Performer    string
	Title        string
}

// DetectAttachment returns the message's attachment, if any. Animations are checked
// before documents because Telegram fills both fields for GIFs.
func DetectAttachment(msg *tgbotapi.Message) (Attachment, bool) {
	if msg == nil {
		return Attachment{}, false
	}
	switch {
	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		return Attachment{
			Kind:         media.MediaTypePhoto,
			FileID:       photo.FileID,
			FileUniqueID: photo.FileUniqueID,
			Width:        positive(photo.Width),
			Height:       positive(photo.Height),
			FileSize:     size(int64(photo.FileSize)),
		}, true
	case msg.Animation != nil:
		a := msg.Animation
		return Attachment{
			Kind:         media.MediaTypeAnimation,
			FileID:       a.FileID,
			FileUniqueID: a.FileUniqueID,
			MimeType:     strings.TrimSpace(a.MimeType),
			FileName:     strings.TrimSpace(a.FileName),
			Width:        positive(a.Width),
			Height:       positive(a.Height),
			Duration:     positive(a.Duration),
			FileSize:     size(int64(a.FileSize)),
		}, true
	case msg.Video != nil:
		v := msg.Video
		return Attachment{
			Kind:         media.MediaTypeVideo,
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			MimeType:     strings.TrimSpace(v.MimeType),
			FileName:     strings.TrimSpace(v.FileName),
			Width:        positive(v.Width),
			Height:       positive(v.Height),
			Duration:     positive(v.Duration),
			FileSize:     size(int64(v.FileSize)),
		}, true
	case msg.Document != nil:
		d := msg.Document
		return Attachment{
			Kind:         media.MediaTypeDocument,
			FileID:       d.FileID,
			FileUniqueID: d.FileUniqueID,
			MimeType:     strings.TrimSpace(d.MimeType),
			FileName:     strings.TrimSpace(d.FileName),
			FileSize:     size(int64(d.FileSize)),
		}, true
	case msg.Audio != nil:
		a := msg.Audio
		return Attachment{
			Kind:         media.MediaTypeAudio,
			FileID:       a.FileID,
			FileUniqueID: a.FileUniqueID,
			MimeType:     strings.TrimSpace(a.MimeType),
			FileName:     strings.TrimSpace(a.FileName),
			Duration:     positive(a.Duration),
			FileSize:     size(int64(a.FileSize)),
			Performer:    strings.TrimSpace(a.Performer),
			Title:        strings.TrimSpace(a.Title),
		}, true
	case msg.Voice != nil:
		v := msg.Voice
		return Attachment{
			Kind:         media.MediaTypeVoice,
			FileID:       v.FileID,
			FileUniqueID: v.FileUniqueID,
			MimeType:     strings.TrimSpace(v.MimeType),
			Duration:     positive(v.Duration),
			FileSize:     size(int64(v.FileSize)),
		}, true
	case msg.Sticker != nil:
		s := msg.Sticker
		return Attachment{
			Kind:         media.MediaTypeSticker,
			FileID:       s.FileID,
			FileUniqueID: s.FileUniqueID,
			Width:        positive(s.Width),
			Height:       positive(s.Height),
			FileSize:     size(int64(s.FileSize)),
			Emoji:        s.Emoji,
			SetName:      s.SetName,
		}, true
	default:
		return Attachment{}, false
	}
}

// pickPhoto returns the variant with the largest pixel area. Ties go to the later
// entry, matching the provider's small-to-large ordering.
func pickPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := items[0]
	for _, item := range items[1:] {
		if item.Width*item.Height >= best.Width*best.Height {
			best = item
		}
	}
	return best
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}

func size(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
