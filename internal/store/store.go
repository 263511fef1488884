// Package store persists channels, messages, media rows and activity entries in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mediavault/mediavault/internal/db"
	"github.com/mediavault/mediavault/internal/media"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements the ingestion write path on PostgreSQL.
type PgStore struct {
	db     DBTX
	logger *slog.Logger
}

// New creates a store over the given connection.
func New(log *slog.Logger, conn DBTX) *PgStore {
	if log == nil {
		log = slog.Default()
	}
	return &PgStore{
		db:     conn,
		logger: log.With(slog.String("service", "store")),
	}
}

const upsertChannelSQL = `
INSERT INTO channels (chat_id, title, username, chat_type, is_active, user_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (chat_id) DO UPDATE SET
  title = EXCLUDED.title,
  username = EXCLUDED.username,
  chat_type = EXCLUDED.chat_type,
  is_active = EXCLUDED.is_active,
  updated_at = now()`

// UpsertChannel creates the channel or refreshes its title, username and active flag.
func (s *PgStore) UpsertChannel(ctx context.Context, ch Channel) error {
	_, err := s.db.Exec(ctx, upsertChannelSQL,
		ch.ChatID,
		ch.Title,
		db.Text(ch.Username),
		db.Text(ch.ChatType),
		ch.IsActive,
		pgUUID(ch.OwnerID),
	)
	if err != nil {
		return fmt.Errorf("upsert channel %d: %w", ch.ChatID, err)
	}
	return nil
}

const saveMessageSQL = `
INSERT INTO messages (message_id, chat_id, sender_name, text, message_type, user_id)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (chat_id, message_id) DO UPDATE SET
  sender_name = EXCLUDED.sender_name,
  text = EXCLUDED.text,
  message_type = EXCLUDED.message_type,
  updated_at = now()`

// SaveMessage inserts the message or, on redelivery or edit, updates it in place.
// Media fields are left untouched; LinkMessageMedia sets them.
func (s *PgStore) SaveMessage(ctx context.Context, msg Message) error {
	_, err := s.db.Exec(ctx, saveMessageSQL,
		int64(msg.MessageID),
		msg.ChatID,
		msg.SenderName,
		db.Text(msg.Text),
		msg.MessageType,
		pgUUID(msg.OwnerID),
	)
	if err != nil {
		return fmt.Errorf("save message %d/%d: %w", msg.ChatID, msg.MessageID, err)
	}
	return nil
}

const logActivitySQL = `
INSERT INTO bot_activities (event_type, chat_id, message_id, message_type, user_id, details)
VALUES ($1, $2, $3, $4, $5, $6)`

// LogActivity appends an activity entry.
func (s *PgStore) LogActivity(ctx context.Context, a Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal activity details: %w", err)
	}
	_, err = s.db.Exec(ctx, logActivitySQL,
		a.EventType,
		a.ChatID,
		db.Int8(int64(a.MessageID)),
		db.Text(a.MessageType),
		pgUUID(a.OwnerID),
		payload,
	)
	if err != nil {
		return fmt.Errorf("log activity %s: %w", a.EventType, err)
	}
	return nil
}

const activityExistsSQL = `
SELECT EXISTS(SELECT 1 FROM bot_activities WHERE event_type = $1 AND chat_id = $2 AND message_id = $3)`

// ActivityExists reports whether an activity of eventType was already logged for a message.
func (s *PgStore) ActivityExists(ctx context.Context, eventType string, chatID int64, messageID int) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, activityExistsSQL, eventType, chatID, int64(messageID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check activity %s %d/%d: %w", eventType, chatID, messageID, err)
	}
	return exists, nil
}

const insertMediaSQL = `
INSERT INTO media (file_name, file_url, media_type, caption, media_group_id, metadata, chat_id, message_id, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

// InsertMedia stores a new media row and returns its id.
func (s *PgStore) InsertMedia(ctx context.Context, item MediaItem) (uuid.UUID, error) {
	payload, err := json.Marshal(item.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal media metadata: %w", err)
	}
	var id pgtype.UUID
	err = s.db.QueryRow(ctx, insertMediaSQL,
		item.FileName,
		item.FileURL,
		item.MediaType.String(),
		db.Text(item.Caption),
		db.Text(item.MediaGroupID),
		payload,
		db.Int8(item.ChatID),
		db.Int8(int64(item.MessageID)),
		pgUUID(item.OwnerID),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert media %s: %w", item.FileName, err)
	}
	return uuid.UUID(id.Bytes), nil
}

const findMediaSQL = `
SELECT id, file_name, file_url, media_type, COALESCE(caption, ''), COALESCE(media_group_id, ''), created_at
FROM media
WHERE chat_id = $1 AND message_id = $2 AND metadata->>'file_unique_id' = $3
ORDER BY created_at DESC
LIMIT 1`

// FindMedia looks up the row already stored for an attachment of a message.
func (s *PgStore) FindMedia(ctx context.Context, chatID int64, messageID int, fileUniqueID string) (MediaItem, bool, error) {
	if strings.TrimSpace(fileUniqueID) == "" {
		return MediaItem{}, false, nil
	}
	var (
		id        pgtype.UUID
		mediaType string
		created   pgtype.Timestamptz
		item      MediaItem
	)
	err := s.db.QueryRow(ctx, findMediaSQL, chatID, int64(messageID), fileUniqueID).
		Scan(&id, &item.FileName, &item.FileURL, &mediaType, &item.Caption, &item.MediaGroupID, &created)
	if errors.Is(err, pgx.ErrNoRows) {
		return MediaItem{}, false, nil
	}
	if err != nil {
		return MediaItem{}, false, fmt.Errorf("find media %d/%d: %w", chatID, messageID, err)
	}
	item.ID = uuid.UUID(id.Bytes)
	item.MediaType = media.MediaType(mediaType)
	item.ChatID = chatID
	item.MessageID = messageID
	item.CreatedAt = created.Time
	return item, true, nil
}

const updateMediaSQL = `
UPDATE media SET caption = $2, metadata = $3, updated_at = now()
WHERE id = $1`

// UpdateMedia refreshes caption and metadata of an existing row.
func (s *PgStore) UpdateMedia(ctx context.Context, item MediaItem) error {
	payload, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal media metadata: %w", err)
	}
	if _, err := s.db.Exec(ctx, updateMediaSQL, pgUUID(item.ID), db.Text(item.Caption), payload); err != nil {
		return fmt.Errorf("update media %s: %w", item.ID, err)
	}
	return nil
}

const linkMessageMediaSQL = `
UPDATE messages SET media_type = $3, media_url = $4, updated_at = now()
WHERE chat_id = $1 AND message_id = $2`

// LinkMessageMedia denormalizes the stored media type and url onto the message row.
func (s *PgStore) LinkMessageMedia(ctx context.Context, chatID int64, messageID int, mediaType, mediaURL string) error {
	if _, err := s.db.Exec(ctx, linkMessageMediaSQL, chatID, int64(messageID), db.Text(mediaType), db.Text(mediaURL)); err != nil {
		return fmt.Errorf("link message media %d/%d: %w", chatID, messageID, err)
	}
	return nil
}

const groupCaptionSQL = `
SELECT caption FROM media
WHERE media_group_id = $1 AND caption IS NOT NULL AND caption <> ''
ORDER BY updated_at DESC
LIMIT 1`

// GroupCaption returns the most recently written caption in a media group, or "".
func (s *PgStore) GroupCaption(ctx context.Context, groupID string) (string, error) {
	if strings.TrimSpace(groupID) == "" {
		return "", nil
	}
	var caption string
	err := s.db.QueryRow(ctx, groupCaptionSQL, groupID).Scan(&caption)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("group caption %s: %w", groupID, err)
	}
	return caption, nil
}

const syncGroupCaptionSQL = `
UPDATE media SET caption = $2, updated_at = now()
WHERE media_group_id = $1 AND caption IS DISTINCT FROM $2`

// SyncGroupCaption overwrites the caption on every row of the group. The latest
// caption-bearing arrival wins.
func (s *PgStore) SyncGroupCaption(ctx context.Context, groupID, caption string) (int64, error) {
	tag, err := s.db.Exec(ctx, syncGroupCaptionSQL, groupID, caption)
	if err != nil {
		return 0, fmt.Errorf("sync group caption %s: %w", groupID, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Debug("group caption synced", slog.String("media_group_id", groupID), slog.Int64("rows", n))
	}
	return tag.RowsAffected(), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
