package domain

import (
	"context"
	"time"
)

// EventSource yields the incoming event sequence one item at a time.
type EventSource interface {
	// Next blocks until the next event is available. It returns io.EOF when
	// the sequence has ended, and an error wrapping ErrMalformed for an item
	// that could not be decoded; the caller may keep calling Next after a
	// malformed item.
	Next(ctx context.Context) (Event, error)
}

// RowWriter issues the logical writes against the wide-column store. All
// methods must be safe for concurrent use.
type RowWriter interface {
	// UpsertProfile writes a profile row; last write wins per DID.
	UpsertProfile(ctx context.Context, row *ProfileRow) error

	// AppendLike appends one audit row to likes_by_author. Replays append again.
	AppendLike(ctx context.Context, row *LikeAuthorRow) error

	// IncrementPostLikes adds one to the post_likes counter of subject.
	IncrementPostLikes(ctx context.Context, subject string) error

	// InsertPost writes a post row; last write wins per post ID.
	InsertPost(ctx context.Context, row *PostRow) error
}

// DeadLetter is a record that could not be transformed or written.
type DeadLetter struct {
	// Kind is the event kind ("profile", "like", "post") or "decode".
	Kind string

	// Key identifies the record: a DID, post URI or like subject.
	Key string

	// Stage is where processing stopped, e.g. "transform", "write", "counter".
	Stage string

	Reason   string
	Event    Event
	FailedAt time.Time
}

// DeadLetterSink records failed events so they can be inspected or replayed.
type DeadLetterSink interface {
	RecordDeadLetter(ctx context.Context, dl *DeadLetter) error
}

// CursorRepository defines persistence operations for firehose cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed firehose cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the firehose cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}
