package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mediavault/mediavault/internal/media"
)

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

type execCall struct {
	sql  string
	args []any
}

// fakeDBTX implements DBTX and records every statement.
type fakeDBTX struct {
	execs        []execCall
	execErr      error
	rowsAffected int64
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (d *fakeDBTX) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	if d.execErr != nil {
		return pgconn.CommandTag{}, d.execErr
	}
	return pgconn.NewCommandTag("UPDATE " + itoa(d.rowsAffected)), nil
}

func (d *fakeDBTX) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, nil
}

func (d *fakeDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if d.queryRowFunc != nil {
		return d.queryRowFunc(ctx, sql, args...)
	}
	return &fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestUpsertChannelUsesConflictOnChatID(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{}
	s := New(nil, fake)
	owner := uuid.Nil
	if err := s.UpsertChannel(context.Background(), Channel{ChatID: -100, Title: "News", IsActive: true, OwnerID: owner}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	if len(fake.execs) != 1 {
		t.Fatalf("expected one statement, got %d", len(fake.execs))
	}
	call := fake.execs[0]
	if !strings.Contains(call.sql, "ON CONFLICT (chat_id)") {
		t.Fatalf("unexpected sql: %s", call.sql)
	}
	if call.args[0] != int64(-100) || call.args[1] != "News" {
		t.Fatalf("unexpected args: %#v", call.args)
	}
	if username := call.args[2].(pgtype.Text); username.Valid {
		t.Fatalf("empty username should be NULL: %+v", username)
	}
}

func TestSaveMessageUpsertsNaturalKey(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{}
	s := New(nil, fake)
	err := s.SaveMessage(context.Background(), Message{ChatID: 5, MessageID: 9, SenderName: "alice", Text: "hi", MessageType: "message"})
	if err != nil {
		t.Fatalf("SaveMessage: %v", err)
	}
	sql := fake.execs[0].sql
	if !strings.Contains(sql, "ON CONFLICT (chat_id, message_id)") {
		t.Fatalf("message write should upsert on natural key: %s", sql)
	}
	if strings.Contains(sql, "media_type =") {
		t.Fatalf("message upsert must not overwrite media fields: %s", sql)
	}
}

func TestLogActivityEncodesDetails(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{}
	s := New(nil, fake)
	err := s.LogActivity(context.Background(), Activity{
		EventType:   EventMessageReceived,
		ChatID:      5,
		MessageID:   9,
		MessageType: "message",
		Details:     map[string]any{"update_id": 42},
	})
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	args := fake.execs[0].args
	var details map[string]any
	if err := json.Unmarshal(args[5].([]byte), &details); err != nil {
		t.Fatalf("details not json: %v", err)
	}
	if details["update_id"] != float64(42) {
		t.Fatalf("unexpected details: %#v", details)
	}
}

func TestActivityExists(t *testing.T) {
	t.Parallel()

	var gotArgs []any
	fake := &fakeDBTX{queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
		gotArgs = args
		return &fakeRow{scanFunc: func(dest ...any) error {
			*dest[0].(*bool) = true
			return nil
		}}
	}}
	s := New(nil, fake)
	exists, err := s.ActivityExists(context.Background(), EventMediaSaved, 5, 9)
	if err != nil {
		t.Fatalf("ActivityExists: %v", err)
	}
	if !exists {
		t.Fatal("expected activity to exist")
	}
	if gotArgs[0] != EventMediaSaved || gotArgs[1] != int64(5) || gotArgs[2] != int64(9) {
		t.Fatalf("unexpected args: %#v", gotArgs)
	}

	boom := errors.New("connection reset")
	s = New(nil, &fakeDBTX{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		return &fakeRow{scanFunc: func(...any) error { return boom }}
	}})
	if _, err := s.ActivityExists(context.Background(), EventMediaSaved, 5, 9); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestInsertMediaReturnsID(t *testing.T) {
	t.Parallel()

	want := uuid.New()
	var gotArgs []any
	fake := &fakeDBTX{queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
		gotArgs = args
		return &fakeRow{scanFunc: func(dest ...any) error {
			*dest[0].(*pgtype.UUID) = pgtype.UUID{Bytes: want, Valid: true}
			return nil
		}}
	}}
	s := New(nil, fake)
	id, err := s.InsertMedia(context.Background(), MediaItem{
		FileName:     "a_1_x.jpg",
		FileURL:      "http://localhost/media/a_1_x.jpg",
		MediaType:    media.MediaTypePhoto,
		MediaGroupID: "g1",
		Metadata:     media.Metadata{MessageID: 9, FileUniqueID: "u1"},
		ChatID:       5,
		MessageID:    9,
	})
	if err != nil {
		t.Fatalf("InsertMedia: %v", err)
	}
	if id != want {
		t.Fatalf("id = %s, want %s", id, want)
	}
	if caption := gotArgs[3].(pgtype.Text); caption.Valid {
		t.Fatalf("empty caption should be NULL")
	}
	if !strings.Contains(string(gotArgs[5].([]byte)), `"file_unique_id":"u1"`) {
		t.Fatalf("metadata not encoded: %s", gotArgs[5])
	}
}

func TestGroupCaptionNoRows(t *testing.T) {
	t.Parallel()

	s := New(nil, &fakeDBTX{})
	caption, err := s.GroupCaption(context.Background(), "g1")
	if err != nil || caption != "" {
		t.Fatalf("GroupCaption = %q, %v", caption, err)
	}
	caption, err = s.GroupCaption(context.Background(), "")
	if err != nil || caption != "" {
		t.Fatalf("GroupCaption(empty) = %q, %v", caption, err)
	}
}

func TestFindMediaMissingUniqueID(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{queryRowFunc: func(context.Context, string, ...any) pgx.Row {
		t.Fatal("query should not run without a unique id")
		return nil
	}}
	s := New(nil, fake)
	if _, found, err := s.FindMedia(context.Background(), 1, 2, ""); found || err != nil {
		t.Fatalf("FindMedia = %v, %v", found, err)
	}
}

func TestSyncGroupCaptionReportsRows(t *testing.T) {
	t.Parallel()

	fake := &fakeDBTX{rowsAffected: 2}
	s := New(nil, fake)
	n, err := s.SyncGroupCaption(context.Background(), "g1", "Sunset")
	if err != nil {
		t.Fatalf("SyncGroupCaption: %v", err)
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}
}

func TestExecErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	s := New(nil, &fakeDBTX{execErr: boom})
	if err := s.UpsertChannel(context.Background(), Channel{ChatID: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := s.LinkMessageMedia(context.Background(), 1, 2, "photo", "u"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
