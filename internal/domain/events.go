package domain

import "time"

// Collection NSIDs for the record kinds this service persists.
const (
	CollectionProfile = "app.bsky.actor.profile"
	CollectionLike    = "app.bsky.feed.like"
	CollectionPost    = "app.bsky.feed.post"
)

// Event is one item of the incoming event sequence. The concrete type is one
// of *ProfileEvent, *LikeEvent, *PostEvent or *OtherEvent.
type Event interface {
	// Kind returns a short name for the variant, used for logs and metrics.
	Kind() string
}

// Blob is a media attachment descriptor as carried by a record.
type Blob struct {
	// CID is the content identifier of the blob.
	CID string

	// MimeType is the declared MIME type.
	MimeType string

	// Size is the byte size. Legacy blob references carry no size.
	Size *int64
}

// AspectRatio is the width/height pair attached to images and videos.
type AspectRatio struct {
	Width  int64
	Height int64
}

// ProfileEvent is an app.bsky.actor.profile create or update.
type ProfileEvent struct {
	// DID identifies the actor whose profile changed.
	DID string

	Avatar      *Blob
	CreatedAt   *time.Time
	Description *string
	DisplayName *string

	// Labels holds the self-label values. Nil means no label set.
	Labels []string

	// PinnedPost is the AT-URI of the pinned post.
	PinnedPost *string
}

func (*ProfileEvent) Kind() string { return "profile" }

// LikeEvent is an app.bsky.feed.like creation.
type LikeEvent struct {
	// Author is the DID of the account that liked.
	Author string

	// Subject is the AT-URI of the liked record.
	Subject string

	CreatedAt time.Time

	// CID is the content identifier of the liked record, when the
	// subject reference carried one.
	CID *string
}

func (*LikeEvent) Kind() string { return "like" }

// Reply holds the thread references of a reply post.
type Reply struct {
	Parent string
	Root   string
}

// PostEvent is an app.bsky.feed.post creation.
type PostEvent struct {
	// Author is the DID of the post's author.
	Author string

	// ID is the AT-URI of the post.
	ID string

	Text string

	// Language is the first language tag set by the author's client.
	Language *string

	Reply  *Reply
	Tags   []string
	Labels []string

	// Embed is nil when the post has no embed.
	Embed Embed

	CreatedAt time.Time
}

func (*PostEvent) Kind() string { return "post" }

// OtherEvent is any event this service does not model. It is ignored.
type OtherEvent struct {
	Collection string
	Operation  string
}

func (*OtherEvent) Kind() string { return "other" }

// Embed is the tagged union of post embeds: *MediaEmbed, *ExternalEmbed or
// *RecordEmbed.
type Embed interface {
	embed()
}

// MediaKind tags a media item as an image or a video.
type MediaKind string

const (
	MediaImage MediaKind = "Image"
	MediaVideo MediaKind = "Video"
)

// MediaItem is a single image or video attached to a post.
type MediaItem struct {
	Kind        MediaKind
	Blob        *Blob
	Alt         *string
	AspectRatio *AspectRatio
}

// MediaEmbed is a list of images, or a single video.
type MediaEmbed struct {
	Items []MediaItem
}

// ExternalEmbed is an external link card.
type ExternalEmbed struct {
	URI         string
	Title       string
	Description string
	Thumb       *Blob
}

// RecordEmbed references another record, typically a quoted post.
type RecordEmbed struct {
	URI string
	CID string
}

func (*MediaEmbed) embed()    {}
func (*ExternalEmbed) embed() {}
func (*RecordEmbed) embed()   {}
