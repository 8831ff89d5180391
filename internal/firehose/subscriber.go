package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

const (
	cursorServiceName  = "jetstream"
	cursorSaveInterval = 5 * time.Second
	reconnectDelay     = 5 * time.Second
	statsInterval      = 30 * time.Second
)

// wantedCollections is the set of AT Proto collection NSIDs this subscriber
// requests from Jetstream.
var wantedCollections = []string{
	domain.CollectionProfile,
	domain.CollectionLike,
	domain.CollectionPost,
}

// Subscriber connects to the Jetstream firehose and yields decoded events.
// It implements domain.EventSource: the sequence never ends on its own, and
// transient connection errors are handled by reconnecting from the last
// handled cursor.
type Subscriber struct {
	url     string
	cursors domain.CursorRepository
	logger  *slog.Logger
	dialer  *websocket.Dialer

	// reconnectDelay is the pause before redialing after a dial or read error.
	reconnectDelay time.Duration

	conn      *websocket.Conn
	stopClose func() bool

	// handled is the time_us of the last event whose processing completed,
	// i.e. the one returned before the current Next call. pending is the
	// one returned by the current call.
	handled int64
	pending int64

	lastCursorSave time.Time
	lastStatsLog   time.Time
	eventsReceived int64
}

// NewSubscriber creates a new firehose subscriber. cursors may be nil, in
// which case the subscriber starts from live on every process start.
func NewSubscriber(firehoseURL string, cursors domain.CursorRepository, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     firehoseURL,
		cursors: cursors,
		logger:  logger,
		dialer:  websocket.DefaultDialer,

		reconnectDelay: reconnectDelay,
	}
}

// Next returns the next event from the firehose, connecting or reconnecting
// as needed. It only returns a non-malformed error when ctx is done.
func (s *Subscriber) Next(ctx context.Context) (domain.Event, error) {
	// Next is only called again once the previous event has been written.
	if s.pending > 0 {
		s.handled = s.pending
	}
	s.maybeSaveCursor(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.conn == nil {
			if err := s.connect(ctx); err != nil {
				s.logger.Error("firehose connection error, reconnecting", "error", err)
				if err := sleepCtx(ctx, s.reconnectDelay); err != nil {
					return nil, err
				}
				continue
			}
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.disconnect()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			reconnects.Inc()
			s.logger.Error("firehose read error, reconnecting", "error", err)
			if err := sleepCtx(ctx, s.reconnectDelay); err != nil {
				return nil, err
			}
			continue
		}

		messagesReceived.Inc()
		s.eventsReceived++
		s.logStats()

		ev, cursor, err := decodeEvent(message)
		if cursor > 0 {
			s.pending = cursor
			currentCursor.Set(float64(cursor))
		}
		if err != nil {
			decodeErrors.Inc()
			return nil, err
		}
		return ev, nil
	}
}

// Close saves the cursor of the last handled event and closes the connection.
func (s *Subscriber) Close(ctx context.Context) error {
	s.disconnect()
	return s.saveCursor(ctx)
}

func (s *Subscriber) connect(ctx context.Context) error {
	cursor := s.handled
	if cursor == 0 && s.cursors != nil {
		saved, err := s.cursors.GetCursor(ctx, cursorServiceName)
		if err != nil {
			s.logger.Warn("failed to load cursor, starting from live", "error", err)
		}
		cursor = saved
	}
	// Jetstream replays from the cursor inclusively; start after the last
	// handled event so it is not delivered twice.
	if cursor > 0 {
		cursor++
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to firehose", "url", wsURL)

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial firehose: %w", err)
	}

	s.conn = conn
	// ReadMessage does not observe ctx; closing the connection unblocks it.
	s.stopClose = context.AfterFunc(ctx, func() { conn.Close() })
	s.logger.Info("connected to firehose", "cursor", cursor)
	return nil
}

func (s *Subscriber) disconnect() {
	if s.stopClose != nil {
		s.stopClose()
		s.stopClose = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse firehose url: %w", err)
	}
	q := u.Query()
	for _, c := range wantedCollections {
		q.Add("wantedCollections", c)
	}
	if cursor > 0 {
		q.Set("cursor", fmt.Sprintf("%d", cursor))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Subscriber) maybeSaveCursor(ctx context.Context) {
	if s.cursors == nil || s.handled == 0 || time.Since(s.lastCursorSave) < cursorSaveInterval {
		return
	}
	if err := s.saveCursor(ctx); err != nil {
		s.logger.Error("failed to save cursor", "error", err)
	}
}

func (s *Subscriber) saveCursor(ctx context.Context) error {
	if s.cursors == nil || s.handled == 0 {
		return nil
	}
	if err := s.cursors.UpdateCursor(ctx, cursorServiceName, s.handled); err != nil {
		return fmt.Errorf("update cursor: %w", err)
	}
	s.lastCursorSave = time.Now()
	return nil
}

func (s *Subscriber) logStats() {
	if s.lastStatsLog.IsZero() {
		s.lastStatsLog = time.Now()
		return
	}
	if time.Since(s.lastStatsLog) >= statsInterval {
		s.logger.Info("firehose stats",
			"events_received", s.eventsReceived,
			"cursor", s.handled,
		)
		s.lastStatsLog = time.Now()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
