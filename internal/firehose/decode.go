package firehose

import (
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/goccy/go-json"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

// decodeEvent parses one Jetstream message into a domain event. The returned
// cursor is the event's time_us, valid whenever the envelope parsed. Errors
// wrap domain.ErrMalformed.
func decodeEvent(data []byte) (domain.Event, int64, error) {
	var event jetstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, 0, domain.Malformed("unmarshal event: %v", err)
	}

	if event.Kind != eventKindCommit || event.Commit == nil {
		return &domain.OtherEvent{Operation: event.Kind}, event.TimeUS, nil
	}

	commit := event.Commit
	other := &domain.OtherEvent{Collection: commit.Collection, Operation: commit.Operation}
	if len(commit.Record) == 0 {
		return other, event.TimeUS, nil
	}

	var (
		ev  domain.Event
		err error
	)
	switch {
	case commit.Collection == domain.CollectionProfile && (commit.Operation == opCreate || commit.Operation == opUpdate):
		ev, err = decodeProfile(event.DID, commit.Record)
	case commit.Collection == domain.CollectionLike && commit.Operation == opCreate:
		ev, err = decodeLike(event.DID, commit.Record)
	case commit.Collection == domain.CollectionPost && commit.Operation == opCreate:
		var uri syntax.ATURI
		uri, err = postURI(event.DID, commit.Collection, commit.RKey)
		if err == nil {
			ev, err = decodePost(event.DID, uri.String(), commit.Record)
		}
	default:
		return other, event.TimeUS, nil
	}
	if err != nil {
		return nil, event.TimeUS, domain.Malformed("%s by %s: %v", commit.Collection, event.DID, err)
	}
	return ev, event.TimeUS, nil
}

func decodeProfile(did string, raw json.RawMessage) (*domain.ProfileEvent, error) {
	var rec profileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal profile record: %w", err)
	}

	ev := &domain.ProfileEvent{
		DID:         did,
		Avatar:      rec.Avatar.toBlob(),
		Description: rec.Description,
		DisplayName: rec.DisplayName,
		Labels:      rec.Labels.values(),
	}
	if rec.CreatedAt != nil {
		// createdAt is optional on profiles, so an unparseable value is dropped.
		if t, err := parseDatetime(*rec.CreatedAt); err == nil {
			ev.CreatedAt = &t
		}
	}
	if rec.PinnedPost != nil && rec.PinnedPost.URI != "" {
		uri := rec.PinnedPost.URI
		ev.PinnedPost = &uri
	}
	return ev, nil
}

func decodeLike(did string, raw json.RawMessage) (*domain.LikeEvent, error) {
	var rec likeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal like record: %w", err)
	}
	if rec.Subject == nil || rec.Subject.URI == "" {
		return nil, fmt.Errorf("like has no subject")
	}
	createdAt, err := parseDatetime(rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	ev := &domain.LikeEvent{
		Author:    did,
		Subject:   rec.Subject.URI,
		CreatedAt: createdAt,
	}
	if rec.Subject.CID != "" {
		cid := rec.Subject.CID
		ev.CID = &cid
	}
	return ev, nil
}

func decodePost(did, uri string, raw json.RawMessage) (*domain.PostEvent, error) {
	var rec postRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal post record: %w", err)
	}
	createdAt, err := parseDatetime(rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	ev := &domain.PostEvent{
		Author:    did,
		ID:        uri,
		Text:      rec.Text,
		Tags:      rec.Tags,
		Labels:    rec.Labels.values(),
		CreatedAt: createdAt,
	}
	if len(rec.Langs) > 0 && rec.Langs[0] != "" {
		lang := rec.Langs[0]
		ev.Language = &lang
	}
	if rec.Reply != nil {
		ev.Reply = &domain.Reply{
			Parent: rec.Reply.Parent.URI,
			Root:   rec.Reply.Root.URI,
		}
	}
	if len(rec.Embed) > 0 {
		ev.Embed, err = decodeEmbed(rec.Embed)
		if err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// decodeEmbed maps the lexicon embed union onto the three domain variants.
// recordWithMedia keeps its media part; unknown embed types yield nil.
func decodeEmbed(raw json.RawMessage) (domain.Embed, error) {
	var header embedHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("unmarshal embed: %w", err)
	}

	switch header.Type {
	case embedImages:
		var e imagesEmbed
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal images embed: %w", err)
		}
		media := &domain.MediaEmbed{Items: make([]domain.MediaItem, 0, len(e.Images))}
		for _, img := range e.Images {
			alt := img.Alt
			media.Items = append(media.Items, domain.MediaItem{
				Kind:        domain.MediaImage,
				Blob:        img.Image.toBlob(),
				Alt:         &alt,
				AspectRatio: img.AspectRatio.toDomain(),
			})
		}
		return media, nil

	case embedVideo:
		var e videoEmbed
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal video embed: %w", err)
		}
		return &domain.MediaEmbed{Items: []domain.MediaItem{{
			Kind:        domain.MediaVideo,
			Blob:        e.Video.toBlob(),
			Alt:         e.Alt,
			AspectRatio: e.AspectRatio.toDomain(),
		}}}, nil

	case embedExternal:
		var e externalEmbed
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal external embed: %w", err)
		}
		return &domain.ExternalEmbed{
			URI:         e.External.URI,
			Title:       e.External.Title,
			Description: e.External.Description,
			Thumb:       e.External.Thumb.toBlob(),
		}, nil

	case embedRecord:
		var e recordEmbed
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal record embed: %w", err)
		}
		return &domain.RecordEmbed{URI: e.Record.URI, CID: e.Record.CID}, nil

	case embedRecordWithMedia:
		var e recordWithMediaEmbed
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("unmarshal recordWithMedia embed: %w", err)
		}
		if len(e.Media) > 0 {
			media, err := decodeEmbed(e.Media)
			if err != nil {
				return nil, err
			}
			if media != nil {
				return media, nil
			}
		}
		return &domain.RecordEmbed{URI: e.Record.Record.URI, CID: e.Record.Record.CID}, nil

	default:
		return nil, nil
	}
}

func (b *blobRef) toBlob() *domain.Blob {
	if b == nil {
		return nil
	}
	out := &domain.Blob{
		CID:      b.CID,
		MimeType: b.MimeType,
		Size:     b.Size,
	}
	if b.Ref != nil && b.Ref.Link != "" {
		out.CID = b.Ref.Link
	}
	return out
}

func (a *aspectRatio) toDomain() *domain.AspectRatio {
	if a == nil {
		return nil
	}
	return &domain.AspectRatio{Width: a.Width, Height: a.Height}
}

func (l *selfLabels) values() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Values))
	for _, v := range l.Values {
		out = append(out, v.Val)
	}
	return out
}

// postURI builds and validates the AT-URI of a post record.
func postURI(did, collection, rkey string) (syntax.ATURI, error) {
	uri, err := syntax.ParseATURI(fmt.Sprintf("at://%s/%s/%s", did, collection, rkey))
	if err != nil {
		return "", fmt.Errorf("invalid post uri: %w", err)
	}
	return uri, nil
}

// parseDatetime accepts the datetimes clients actually write, including
// ones missing a timezone or using a +0000 offset.
func parseDatetime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing createdAt")
	}
	dt, err := syntax.ParseDatetimeLenient(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid createdAt %q: %w", raw, err)
	}
	t := dt.Time()
	return t.UTC(), nil
}
