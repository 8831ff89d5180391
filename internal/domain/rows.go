package domain

import "time"

// BlobStruct is the storage form of a blob. Every field is independently
// nullable. It backs both the profile avatar and embedded media blobs.
type BlobStruct struct {
	CID      *string
	MimeType *string
	Size     *int64
}

// ProfileRow is a row of the profile table, keyed by DID.
type ProfileRow struct {
	DID string

	// Avatar is always present; all of its fields are nil when the profile
	// has no avatar.
	Avatar BlobStruct

	CreatedAt   *time.Time
	Description *string
	DisplayName *string
	Labels      []string
	PinnedPost  *string
}

// LikeAuthorRow is an append to the likes_by_author audit table.
type LikeAuthorRow struct {
	Author    string
	Subject   string
	CreatedAt time.Time
	CID       *string
}

// LikeRows is the pair of independent writes produced by one like.
type LikeRows struct {
	Audit LikeAuthorRow

	// CounterSubject is the post_likes key incremented by one.
	CounterSubject string
}

// ReplyStruct is the storage form of a reply reference. Both fields are nil
// for a top-level post.
type ReplyStruct struct {
	Parent *string
	Root   *string
}

// MediaEmbedItem is one image or video of a post embed.
type MediaEmbedItem struct {
	// Kind is "Image" or "Video".
	Kind string
	Alt  *string
	Blob BlobStruct

	// AspectRatio has exactly the keys "width" and "height", or is nil.
	AspectRatio map[string]int32
}

// ExternalRef is the storage form of an external link card.
type ExternalRef struct {
	Description string
	Title       string
	URI         string
	Thumb       *BlobStruct
}

// EmbedStruct is the denormalized embed of a post. At most one of Media
// (non-empty), External and Record is populated. Media is never nil.
type EmbedStruct struct {
	Media    []MediaEmbedItem
	External *ExternalRef
	Record   *string
}

// PostRow is a row of the post table, keyed by ID.
type PostRow struct {
	ID        string
	Author    string
	CreatedAt time.Time
	Text      string
	Language  *string
	Tags      []string
	Labels    []string
	Reply     ReplyStruct
	Embed     EmbedStruct
}
