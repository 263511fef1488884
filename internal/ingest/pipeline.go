// Package ingest turns classified webhook updates into channel, message, media and
// activity rows.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mediavault/mediavault/internal/media"
	"github.com/mediavault/mediavault/internal/store"
	"github.com/mediavault/mediavault/internal/telegram"
)

// Store is the row persistence the pipeline writes through.
type Store interface {
	UpsertChannel(ctx context.Context, ch store.Channel) error
	SaveMessage(ctx context.Context, msg store.Message) error
	LogActivity(ctx context.Context, a store.Activity) error
	ActivityExists(ctx context.Context, eventType string, chatID int64, messageID int) (bool, error)
	FindMedia(ctx context.Context, chatID int64, messageID int, fileUniqueID string) (store.MediaItem, bool, error)
	InsertMedia(ctx context.Context, item store.MediaItem) (uuid.UUID, error)
	UpdateMedia(ctx context.Context, item store.MediaItem) error
	LinkMessageMedia(ctx context.Context, chatID int64, messageID int, mediaType, mediaURL string) error
	GroupCaption(ctx context.Context, groupID string) (string, error)
	SyncGroupCaption(ctx context.Context, groupID, caption string) (int64, error)
}

// Fetcher downloads a provider file by id.
type Fetcher interface {
	Fetch(ctx context.Context, fileID string) (telegram.Download, error)
}

// Deduper remembers update ids that were fully ingested.
type Deduper interface {
	Seen(ctx context.Context, updateID int) (bool, error)
	Mark(ctx context.Context, updateID int) error
}

// ActivityPublisher receives activity entries after they are stored.
type ActivityPublisher interface {
	Publish(ctx context.Context, a store.Activity) error
}

// Options holds the optional collaborators of a Pipeline.
type Options struct {
	OwnerID   uuid.UUID
	Filenames *media.FilenameGenerator
	Deduper   Deduper
	Publisher ActivityPublisher
}

// StepResult records a step that failed without aborting ingestion.
type StepResult struct {
	Step Step
	Err  error
}

// Report describes what one Ingest call did.
type Report struct {
	UpdateID    int
	MessageType telegram.MessageType
	// Skipped is set when the update carried no message.
	Skipped bool
	// Duplicate is set when the update id was already ingested.
	Duplicate bool
	Committed []Step
	Warnings  []StepResult
	MediaID   uuid.UUID
	FileName  string
	FileURL   string
}

func (r *Report) commit(step Step) {
	r.Committed = append(r.Committed, step)
}

// Pipeline runs the ordered ingestion steps for one update. Steps run sequentially;
// a failed write aborts the call and leaves earlier writes committed.
type Pipeline struct {
	store     Store
	fetcher   Fetcher
	storage   media.StorageProvider
	filenames *media.FilenameGenerator
	deduper   Deduper
	publisher ActivityPublisher
	ownerID   uuid.UUID
	logger    *slog.Logger
}

// NewPipeline wires the pipeline collaborators.
func NewPipeline(log *slog.Logger, st Store, fetcher Fetcher, storage media.StorageProvider, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	filenames := opts.Filenames
	if filenames == nil {
		filenames = media.NewFilenameGenerator()
	}
	return &Pipeline{
		store:     st,
		fetcher:   fetcher,
		storage:   storage,
		filenames: filenames,
		deduper:   opts.Deduper,
		publisher: opts.Publisher,
		ownerID:   opts.OwnerID,
		logger:    log.With(slog.String("service", "ingest")),
	}
}

// Ingest persists one classified update.
func (p *Pipeline) Ingest(ctx context.Context, event telegram.Event) (Report, error) {
	report := Report{UpdateID: event.UpdateID, MessageType: event.Type}
	if event.Empty() {
		report.Skipped = true
		return report, nil
	}
	if p.seen(ctx, event.UpdateID) {
		report.Duplicate = true
		p.logger.Info("duplicate update skipped", slog.Int("update_id", event.UpdateID))
		return report, nil
	}

	msg := event.Message
	chat := msg.Chat
	log := p.logger.With(
		slog.Int("update_id", event.UpdateID),
		slog.Int64("chat_id", chat.ID),
		slog.Int("message_id", msg.MessageID),
		slog.String("message_type", event.Type.String()),
		slog.Bool("is_edit", event.IsEdit()),
	)

	err := p.store.UpsertChannel(ctx, store.Channel{
		ChatID:   chat.ID,
		Title:    telegram.ChatTitle(chat),
		Username: chat.UserName,
		ChatType: chat.Type,
		IsActive: true,
		OwnerID:  p.ownerID,
	})
	if err != nil {
		return report, p.fail(log, &report, StepChannelUpserted, ErrStorageWrite, err)
	}
	report.commit(StepChannelUpserted)

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	err = p.store.SaveMessage(ctx, store.Message{
		ChatID:      chat.ID,
		MessageID:   msg.MessageID,
		SenderName:  telegram.SenderLabel(msg),
		Text:        text,
		MessageType: event.Type.String(),
		OwnerID:     p.ownerID,
	})
	if err != nil {
		return report, p.fail(log, &report, StepMessageSaved, ErrStorageWrite, err)
	}
	report.commit(StepMessageSaved)

	p.logActivity(ctx, log, &report, StepMessageReceivedLogged, store.Activity{
		EventType:   store.EventMessageReceived,
		ChatID:      chat.ID,
		MessageID:   msg.MessageID,
		MessageType: event.Type.String(),
		OwnerID:     p.ownerID,
		Details: map[string]any{
			"update_id":      event.UpdateID,
			"edit_date":      nullableInt(msg.EditDate),
			"media_group_id": nullableString(msg.MediaGroupID),
			"message_type":   event.Type.String(),
			"is_edit":        event.IsEdit(),
		},
	})

	if att, ok := telegram.DetectAttachment(msg); ok {
		if err := p.ingestMedia(ctx, log, &report, event, att); err != nil {
			return report, err
		}
	}

	p.mark(ctx, event.UpdateID)
	log.Info("update ingested",
		slog.String("committed", joinSteps(report.Committed)),
		slog.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}

func (p *Pipeline) ingestMedia(ctx context.Context, log *slog.Logger, report *Report, event telegram.Event, att telegram.Attachment) error {
	msg := event.Message
	chatID := msg.Chat.ID
	groupID := strings.TrimSpace(msg.MediaGroupID)
	ownCaption := telegram.MessageCaption(msg)
	meta := telegram.FormatMetadata(att, msg)
	log = log.With(slog.String("media_type", att.Kind.String()))

	existing, found, err := p.store.FindMedia(ctx, chatID, msg.MessageID, att.FileUniqueID)
	if err != nil {
		return p.fail(log, report, StepMediaSaved, ErrStorageWrite, err)
	}

	var item store.MediaItem
	if found {
		// Redelivered or edited message: keep the stored object, refresh the row.
		item = existing
		item.Metadata = meta
		// Grouped rows carry the group caption, so only ungrouped rows follow their own.
		if ownCaption != "" || groupID == "" {
			item.Caption = ownCaption
		}
		if err := p.store.UpdateMedia(ctx, item); err != nil {
			return p.fail(log, report, StepMediaUpdated, ErrStorageWrite, err)
		}
		report.commit(StepMediaUpdated)
	} else {
		dl, err := p.fetcher.Fetch(ctx, att.FileID)
		if err != nil {
			return p.fail(log, report, StepMediaFetched, ErrUpstreamFetch, err)
		}

		ext := media.ExtensionFor(dl.FilePath, att.MimeType, att.Kind)
		hint := ownCaption
		if hint == "" {
			hint = att.FileID
		}
		fileName := p.filenames.Generate(hint, ext)
		contentType := media.ContentType(firstMime(att.MimeType, dl.ContentType), ext)
		if err := p.storage.Put(ctx, fileName, bytes.NewReader(dl.Data), contentType); err != nil {
			return p.fail(log, report, StepMediaUploaded, ErrStorageWrite, err)
		}
		report.commit(StepMediaUploaded)

		caption := ownCaption
		if caption == "" && groupID != "" {
			inherited, err := p.store.GroupCaption(ctx, groupID)
			if err != nil {
				log.Warn("group caption lookup failed", slog.String("media_group_id", groupID), slog.Any("error", err))
			}
			caption = inherited
		}

		item = store.MediaItem{
			FileName:     fileName,
			FileURL:      p.storage.PublicURL(fileName),
			MediaType:    att.Kind,
			Caption:      caption,
			MediaGroupID: groupID,
			Metadata:     meta,
			ChatID:       chatID,
			MessageID:    msg.MessageID,
			OwnerID:      p.ownerID,
		}
		id, err := p.store.InsertMedia(ctx, item)
		if err != nil {
			return p.fail(log, report, StepMediaSaved, ErrStorageWrite, err)
		}
		item.ID = id
		report.commit(StepMediaSaved)
	}
	report.MediaID = item.ID
	report.FileName = item.FileName
	report.FileURL = item.FileURL

	if err := p.store.LinkMessageMedia(ctx, chatID, msg.MessageID, att.Kind.String(), item.FileURL); err != nil {
		return p.fail(log, report, StepMessageMediaLinked, ErrStorageWrite, err)
	}
	report.commit(StepMessageMediaLinked)

	if p.needsSavedActivity(ctx, log, chatID, msg.MessageID, found) {
		p.logActivity(ctx, log, report, StepMediaSavedLogged, store.Activity{
			EventType: store.EventMediaSaved,
			ChatID:    chatID,
			MessageID: msg.MessageID,
			OwnerID:   p.ownerID,
			Details: map[string]any{
				"media_type":     att.Kind.String(),
				"file_name":      item.FileName,
				"media_group_id": nullableString(groupID),
				"caption":        nullableString(item.Caption),
			},
		})
	}

	// Last writer wins: every caption-bearing arrival overwrites the whole group.
	if groupID != "" && ownCaption != "" {
		n, err := p.store.SyncGroupCaption(ctx, groupID, ownCaption)
		if err != nil {
			return p.fail(log, report, StepGroupCaptionSynced, ErrStorageWrite, err)
		}
		report.commit(StepGroupCaptionSynced)
		log.Debug("group caption propagated", slog.String("media_group_id", groupID), slog.Int64("rows", n))
	}

	log.Info("media stored", slog.String("file_name", item.FileName), slog.Bool("reused", found))
	return nil
}

// needsSavedActivity reports whether media_saved is still missing for a message. A
// redelivery can reach the reuse path after an earlier attempt stored the row but
// aborted before logging it.
func (p *Pipeline) needsSavedActivity(ctx context.Context, log *slog.Logger, chatID int64, messageID int, found bool) bool {
	if !found {
		return true
	}
	exists, err := p.store.ActivityExists(ctx, store.EventMediaSaved, chatID, messageID)
	if err != nil {
		log.Warn("media_saved lookup failed", slog.Any("error", err))
		return true
	}
	return !exists
}

func (p *Pipeline) logActivity(ctx context.Context, log *slog.Logger, report *Report, step Step, a store.Activity) {
	if err := p.store.LogActivity(ctx, a); err != nil {
		log.Warn("activity log failed", slog.String("step", string(step)), slog.Any("error", err))
		report.Warnings = append(report.Warnings, StepResult{Step: step, Err: err})
		return
	}
	report.commit(step)
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, a); err != nil {
		log.Warn("activity publish failed", slog.String("event_type", a.EventType), slog.Any("error", err))
	}
}

func (p *Pipeline) fail(log *slog.Logger, report *Report, step Step, kind, err error) error {
	committed := append([]Step(nil), report.Committed...)
	log.Error("ingestion aborted",
		slog.String("step", string(step)),
		slog.String("committed", joinSteps(committed)),
		slog.Any("error", err),
	)
	return &StepError{Step: step, Kind: kind, Err: err, Committed: committed}
}

func (p *Pipeline) seen(ctx context.Context, updateID int) bool {
	if p.deduper == nil || updateID <= 0 {
		return false
	}
	seen, err := p.deduper.Seen(ctx, updateID)
	if err != nil {
		p.logger.Warn("dedup lookup failed", slog.Int("update_id", updateID), slog.Any("error", err))
		return false
	}
	return seen
}

func (p *Pipeline) mark(ctx context.Context, updateID int) {
	if p.deduper == nil || updateID <= 0 {
		return
	}
	if err := p.deduper.Mark(ctx, updateID); err != nil {
		p.logger.Warn("dedup mark failed", slog.Int("update_id", updateID), slog.Any("error", err))
	}
}

func firstMime(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && v != "application/octet-stream" {
			return v
		}
	}
	return ""
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

// String renders the report for logs.
func (r Report) String() string {
	return fmt.Sprintf("update=%d type=%s committed=[%s] warnings=%d", r.UpdateID, r.MessageType, joinSteps(r.Committed), len(r.Warnings))
}
