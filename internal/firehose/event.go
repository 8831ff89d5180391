package firehose

import "github.com/goccy/go-json"

const (
	eventKindCommit = "commit"

	opCreate = "create"
	opUpdate = "update"

	embedImages          = "app.bsky.embed.images"
	embedVideo           = "app.bsky.embed.video"
	embedExternal        = "app.bsky.embed.external"
	embedRecord          = "app.bsky.embed.record"
	embedRecordWithMedia = "app.bsky.embed.recordWithMedia"
)

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream. The record is decoded
// separately once the collection is known.
type jetstreamCommit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// blobRef is a blob reference. Current blobs carry ref.$link and size;
// legacy blobs carry a bare cid and no size.
type blobRef struct {
	Type string `json:"$type"`
	Ref  *struct {
		Link string `json:"$link"`
	} `json:"ref,omitempty"`
	CID      string `json:"cid,omitempty"`
	MimeType string `json:"mimeType"`
	Size     *int64 `json:"size,omitempty"`
}

type selfLabels struct {
	Values []struct {
		Val string `json:"val"`
	} `json:"values"`
}

type aspectRatio struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// profileRecord is the parsed content of an app.bsky.actor.profile record.
type profileRecord struct {
	Avatar      *blobRef    `json:"avatar,omitempty"`
	CreatedAt   *string     `json:"createdAt,omitempty"`
	Description *string     `json:"description,omitempty"`
	DisplayName *string     `json:"displayName,omitempty"`
	Labels      *selfLabels `json:"labels,omitempty"`
	PinnedPost  *strongRef  `json:"pinnedPost,omitempty"`
}

// likeRecord is the parsed content of an app.bsky.feed.like record.
type likeRecord struct {
	Subject   *strongRef `json:"subject"`
	CreatedAt string     `json:"createdAt"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Text      string          `json:"text"`
	CreatedAt string          `json:"createdAt"`
	Langs     []string        `json:"langs"`
	Reply     *replyRef       `json:"reply,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Labels    *selfLabels     `json:"labels,omitempty"`
	Embed     json.RawMessage `json:"embed,omitempty"`
}

type embedHeader struct {
	Type string `json:"$type"`
}

type imagesEmbed struct {
	Images []struct {
		Alt         string       `json:"alt"`
		Image       *blobRef     `json:"image"`
		AspectRatio *aspectRatio `json:"aspectRatio,omitempty"`
	} `json:"images"`
}

type videoEmbed struct {
	Video       *blobRef     `json:"video"`
	Alt         *string      `json:"alt,omitempty"`
	AspectRatio *aspectRatio `json:"aspectRatio,omitempty"`
}

type externalEmbed struct {
	External struct {
		URI         string   `json:"uri"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Thumb       *blobRef `json:"thumb,omitempty"`
	} `json:"external"`
}

type recordEmbed struct {
	Record strongRef `json:"record"`
}

type recordWithMediaEmbed struct {
	Record recordEmbed     `json:"record"`
	Media  json.RawMessage `json:"media"`
}
