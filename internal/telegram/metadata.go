package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/mediavault/internal/media"
)

// FormatMetadata builds the metadata record stored with a media row. Missing
// optional fields stay unset.
func FormatMetadata(att Attachment, msg *tgbotapi.Message) media.Metadata {
	meta := media.Metadata{
		MimeType:     att.MimeType,
		Width:        att.Width,
		Height:       att.Height,
		Duration:     att.Duration,
		FileSize:     att.FileSize,
		FileID:       att.FileID,
		FileUniqueID: att.FileUniqueID,
		FileName:     att.FileName,
		Emoji:        att.Emoji,
		SetName:      att.SetName,
		Performer:    att.Performer,
		Title:        att.Title,
	}
	if msg == nil {
		return meta
	}
	meta.MediaGroupID = msg.MediaGroupID
	meta.MessageID = msg.MessageID
	meta.Caption = MessageCaption(msg)
	meta.Date = int64(msg.Date)
	if msg.Chat != nil {
		meta.ChatID = msg.Chat.ID
	}
	if msg.EditDate > 0 {
		edit := int64(msg.EditDate)
		meta.EditDate = &edit
	}
	return meta
}
