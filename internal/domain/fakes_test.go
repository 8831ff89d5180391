package domain

import (
	"context"
	"io"
	"sync"
	"time"
)

// memStore is an in-memory RowWriter with the store's key semantics:
// profiles and posts upsert by key, likes append, counters add.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]ProfileRow
	posts    map[string]PostRow
	likes    []LikeAuthorRow
	counters map[string]int64
	calls    map[string]int

	// fail, if set, is consulted before every write.
	fail func(op string, attempt int) error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]ProfileRow{},
		posts:    map[string]PostRow{},
		counters: map[string]int64{},
		calls:    map[string]int{},
	}
}

func (m *memStore) check(op string) error {
	m.calls[op]++
	if m.fail != nil {
		return m.fail(op, m.calls[op])
	}
	return nil
}

func (m *memStore) UpsertProfile(_ context.Context, row *ProfileRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("profile"); err != nil {
		return err
	}
	m.profiles[row.DID] = *row
	return nil
}

func (m *memStore) AppendLike(_ context.Context, row *LikeAuthorRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("like"); err != nil {
		return err
	}
	m.likes = append(m.likes, *row)
	return nil
}

func (m *memStore) IncrementPostLikes(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("counter"); err != nil {
		return err
	}
	m.counters[subject]++
	return nil
}

func (m *memStore) InsertPost(_ context.Context, row *PostRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("post"); err != nil {
		return err
	}
	m.posts[row.ID] = *row
	return nil
}

type memDeadLetters struct {
	letters []DeadLetter
}

func (m *memDeadLetters) RecordDeadLetter(_ context.Context, dl *DeadLetter) error {
	m.letters = append(m.letters, *dl)
	return nil
}

type sourceItem struct {
	ev  Event
	err error
}

// sliceSource replays fixed items and then reports io.EOF.
type sliceSource struct {
	items []sourceItem
	pos   int
}

func sourceOf(events ...Event) *sliceSource {
	src := &sliceSource{}
	for _, ev := range events {
		src.items = append(src.items, sourceItem{ev: ev})
	}
	return src
}

func (s *sliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.ev, item.err
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func newTestDispatcher(store *memStore, dls *memDeadLetters) *Dispatcher {
	var sink DeadLetterSink
	if dls != nil {
		sink = dls
	}
	return NewDispatcher(NewTransformer(nil), NewExecutor(store, testPolicy(), nil), sink, nil)
}

func ptr[T any](v T) *T {
	return &v
}
