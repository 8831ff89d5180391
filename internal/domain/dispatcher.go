package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("dispatcher")

// Dispatcher consumes the event sequence, routes each event to its
// transformer and writes the result. Events are handled strictly one at a
// time in arrival order; a slow store throttles consumption.
type Dispatcher struct {
	transformer *Transformer
	executor    *Executor
	deadLetters DeadLetterSink
	logger      *slog.Logger

	now func() time.Time
}

// NewDispatcher creates a Dispatcher. deadLetters may be nil, in which case
// failed events are only logged.
func NewDispatcher(transformer *Transformer, executor *Executor, deadLetters DeadLetterSink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		transformer: transformer,
		executor:    executor,
		deadLetters: deadLetters,
		logger:      logger,
		now:         time.Now,
	}
}

// Run consumes src until it reports io.EOF, in which case it returns nil.
// Per-event failures are dead-lettered and do not stop the loop; a source
// error or loss of the store does.
func (d *Dispatcher) Run(ctx context.Context, src EventSource) error {
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, ErrMalformed) {
			eventsFailed.WithLabelValues("decode", "decode").Inc()
			d.deadLetter(ctx, &DeadLetter{Kind: "decode", Stage: "decode", Reason: err.Error()})
			continue
		}
		if err != nil {
			return fmt.Errorf("next event: %w", err)
		}

		if err := d.Handle(ctx, ev); err != nil {
			return err
		}
	}
}

// Handle transforms and writes a single event. It returns an error only when
// the consumer must stop: the store is unavailable or ctx is done.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}
	eventsReceived.WithLabelValues(ev.Kind()).Inc()

	ctx, span := tracer.Start(ctx, "dispatcher.handle", trace.WithAttributes(attribute.String("kind", ev.Kind())))
	defer span.End()

	var key string
	var err error
	switch e := ev.(type) {
	case *ProfileEvent:
		key = e.DID
		err = d.handleProfile(ctx, e)
	case *LikeEvent:
		key = e.Subject
		err = d.handleLike(ctx, e)
	case *PostEvent:
		key = e.ID
		err = d.handlePost(ctx, e)
	default:
		// Event kinds we do not model are skipped.
		return nil
	}

	if err == nil {
		eventsWritten.WithLabelValues(ev.Kind()).Inc()
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("handle %s %s: %w", ev.Kind(), key, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	stage := stageOf(err)
	span.SetStatus(codes.Error, stage)
	span.RecordError(err)
	eventsFailed.WithLabelValues(ev.Kind(), stage).Inc()
	d.logger.Error("failed to handle event", "kind", ev.Kind(), "key", key, "stage", stage, "error", err)
	d.deadLetter(ctx, &DeadLetter{
		Kind:   ev.Kind(),
		Key:    key,
		Stage:  stage,
		Reason: err.Error(),
		Event:  ev,
	})
	return nil
}

func (d *Dispatcher) handleProfile(ctx context.Context, ev *ProfileEvent) error {
	row, err := d.transformer.Profile(ev)
	if err != nil {
		return err
	}
	return d.executor.WriteProfile(ctx, row)
}

func (d *Dispatcher) handleLike(ctx context.Context, ev *LikeEvent) error {
	rows, err := d.transformer.Like(ev)
	if err != nil {
		return err
	}
	return d.executor.WriteLike(ctx, rows)
}

func (d *Dispatcher) handlePost(ctx context.Context, ev *PostEvent) error {
	row, err := d.transformer.Post(ev)
	if err != nil {
		return err
	}
	return d.executor.WritePost(ctx, row)
}

func (d *Dispatcher) deadLetter(ctx context.Context, dl *DeadLetter) {
	if d.deadLetters == nil {
		return
	}
	dl.FailedAt = d.now().UTC()
	if err := d.deadLetters.RecordDeadLetter(ctx, dl); err != nil {
		d.logger.Error("failed to record dead letter", "kind", dl.Kind, "key", dl.Key, "error", err)
	}
}

func stageOf(err error) string {
	var partial *PartialWriteError
	switch {
	case errors.Is(err, ErrMalformed):
		return "transform"
	case errors.As(err, &partial):
		return partial.Stage()
	default:
		return "write"
	}
}
