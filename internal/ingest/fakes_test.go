package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/mediavault/mediavault/internal/media"
	"github.com/mediavault/mediavault/internal/store"
	"github.com/mediavault/mediavault/internal/telegram"
)

type messageKey struct {
	chatID    int64
	messageID int
}

// memStore is an in-memory Store that mirrors the SQL semantics of store.PgStore.
type memStore struct {
	mu         sync.Mutex
	channels   map[int64]store.Channel
	messages   map[messageKey]store.Message
	links      map[messageKey]string
	media      []store.MediaItem
	activities []store.Activity
	calls      int

	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		channels: map[int64]store.Channel{},
		messages: map[messageKey]store.Message{},
		links:    map[messageKey]string{},
		failOn:   map[string]error{},
	}
}

func (s *memStore) hit(op string) error {
	s.calls++
	return s.failOn[op]
}

func (s *memStore) UpsertChannel(_ context.Context, ch store.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("UpsertChannel"); err != nil {
		return err
	}
	s.channels[ch.ChatID] = ch
	return nil
}

func (s *memStore) SaveMessage(_ context.Context, msg store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("SaveMessage"); err != nil {
		return err
	}
	s.messages[messageKey{msg.ChatID, msg.MessageID}] = msg
	return nil
}

func (s *memStore) LogActivity(_ context.Context, a store.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("LogActivity"); err != nil {
		return err
	}
	s.activities = append(s.activities, a)
	return nil
}

func (s *memStore) ActivityExists(_ context.Context, eventType string, chatID int64, messageID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("ActivityExists"); err != nil {
		return false, err
	}
	for _, a := range s.activities {
		if a.EventType == eventType && a.ChatID == chatID && a.MessageID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FindMedia(_ context.Context, chatID int64, messageID int, fileUniqueID string) (store.MediaItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("FindMedia"); err != nil {
		return store.MediaItem{}, false, err
	}
	if fileUniqueID == "" {
		return store.MediaItem{}, false, nil
	}
	for _, m := range s.media {
		if m.ChatID == chatID && m.MessageID == messageID && m.Metadata.FileUniqueID == fileUniqueID {
			return m, true, nil
		}
	}
	return store.MediaItem{}, false, nil
}

func (s *memStore) InsertMedia(_ context.Context, item store.MediaItem) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("InsertMedia"); err != nil {
		return uuid.Nil, err
	}
	item.ID = uuid.New()
	s.media = append(s.media, item)
	return item.ID, nil
}

func (s *memStore) UpdateMedia(_ context.Context, item store.MediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("UpdateMedia"); err != nil {
		return err
	}
	for i := range s.media {
		if s.media[i].ID == item.ID {
			s.media[i].Caption = item.Caption
			s.media[i].Metadata = item.Metadata
		}
	}
	return nil
}

func (s *memStore) LinkMessageMedia(_ context.Context, chatID int64, messageID int, mediaType, mediaURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("LinkMessageMedia"); err != nil {
		return err
	}
	s.links[messageKey{chatID, messageID}] = mediaType + "|" + mediaURL
	return nil
}

func (s *memStore) GroupCaption(_ context.Context, groupID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("GroupCaption"); err != nil {
		return "", err
	}
	for i := len(s.media) - 1; i >= 0; i-- {
		if s.media[i].MediaGroupID == groupID && s.media[i].Caption != "" {
			return s.media[i].Caption, nil
		}
	}
	return "", nil
}

func (s *memStore) SyncGroupCaption(_ context.Context, groupID, caption string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("SyncGroupCaption"); err != nil {
		return 0, err
	}
	var n int64
	for i := range s.media {
		if s.media[i].MediaGroupID == groupID && s.media[i].Caption != caption {
			s.media[i].Caption = caption
			n++
		}
	}
	return n, nil
}

func (s *memStore) activityCount(eventType string) int {
	n := 0
	for _, a := range s.activities {
		if a.EventType == eventType {
			n++
		}
	}
	return n
}

type fakeFetcher struct {
	downloads map[string]telegram.Download
	err       error
	calls     int
}

func (f *fakeFetcher) Fetch(_ context.Context, fileID string) (telegram.Download, error) {
	f.calls++
	if f.err != nil {
		return telegram.Download{}, f.err
	}
	if dl, ok := f.downloads[fileID]; ok {
		return dl, nil
	}
	return telegram.Download{Data: []byte("bytes-" + fileID), FilePath: "photos/" + fileID + ".jpg"}, nil
}

type memStorage struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Put(_ context.Context, key string, r io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, media.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) PublicURL(key string) string {
	return "http://media.test/" + key
}

type memDeduper struct {
	seen    map[int]bool
	seenErr error
}

func (d *memDeduper) Seen(_ context.Context, updateID int) (bool, error) {
	if d.seenErr != nil {
		return false, d.seenErr
	}
	return d.seen[updateID], nil
}

func (d *memDeduper) Mark(_ context.Context, updateID int) error {
	d.seen[updateID] = true
	return nil
}

type recordingPublisher struct {
	events []store.Activity
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, a store.Activity) error {
	p.events = append(p.events, a)
	return p.err
}

var errBoom = errors.New("boom")
