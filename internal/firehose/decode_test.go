package firehose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

func TestDecodeProfile(t *testing.T) {
	assert := assert.New(t)
	msg := `{"did":"did:plc:alice","time_us":1725911162329308,"kind":"commit","commit":{"rev":"3l3qo2vutsw2b","operation":"update","collection":"app.bsky.actor.profile","rkey":"self","record":{"$type":"app.bsky.actor.profile","avatar":{"$type":"blob","ref":{"$link":"bafkreiavatar"},"mimeType":"image/jpeg","size":91234},"createdAt":"2024-09-09T19:46:02.102Z","description":"hi there","displayName":"Alice","labels":{"$type":"com.atproto.label.defs#selfLabels","values":[{"val":"!no-unauthenticated"}]},"pinnedPost":{"cid":"bafyreipinned","uri":"at://did:plc:alice/app.bsky.feed.post/3l3"}},"cid":"bafyreiprofile"}}`

	ev, cursor, err := decodeEvent([]byte(msg))
	require.NoError(t, err)
	assert.Equal(int64(1725911162329308), cursor)

	profile, ok := ev.(*domain.ProfileEvent)
	require.True(t, ok)
	assert.Equal("did:plc:alice", profile.DID)
	assert.Equal(&domain.Blob{CID: "bafkreiavatar", MimeType: "image/jpeg", Size: int64Ptr(91234)}, profile.Avatar)
	assert.Equal(time.Date(2024, 9, 9, 19, 46, 2, 102000000, time.UTC), *profile.CreatedAt)
	assert.Equal("hi there", *profile.Description)
	assert.Equal("Alice", *profile.DisplayName)
	assert.Equal([]string{"!no-unauthenticated"}, profile.Labels)
	assert.Equal("at://did:plc:alice/app.bsky.feed.post/3l3", *profile.PinnedPost)
}

func TestDecodeProfileLegacyAvatar(t *testing.T) {
	msg := `{"did":"did:plc:old","time_us":1,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.actor.profile","rkey":"self","record":{"avatar":{"cid":"bafylegacy","mimeType":"image/png"},"createdAt":"not a date"}}}`

	ev, _, err := decodeEvent([]byte(msg))
	require.NoError(t, err)

	profile := ev.(*domain.ProfileEvent)
	assert.Equal(t, &domain.Blob{CID: "bafylegacy", MimeType: "image/png"}, profile.Avatar)
	assert.Nil(t, profile.CreatedAt)
	assert.Nil(t, profile.Labels)
	assert.Nil(t, profile.PinnedPost)
}

func TestDecodeLike(t *testing.T) {
	msg := `{"did":"did:plc:alice","time_us":2,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","rkey":"3l3like","record":{"$type":"app.bsky.feed.like","createdAt":"2024-09-09T19:46:02Z","subject":{"cid":"bafyreiliked","uri":"at://did:plc:bob/app.bsky.feed.post/1"}},"cid":"bafyreilike"}}`

	ev, _, err := decodeEvent([]byte(msg))
	require.NoError(t, err)

	assert.Equal(t, &domain.LikeEvent{
		Author:    "did:plc:alice",
		Subject:   "at://did:plc:bob/app.bsky.feed.post/1",
		CreatedAt: time.Date(2024, 9, 9, 19, 46, 2, 0, time.UTC),
		CID:       strPtr("bafyreiliked"),
	}, ev)
}

func TestDecodeLikeWithoutSubject(t *testing.T) {
	msg := `{"did":"did:plc:alice","time_us":3,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","rkey":"x","record":{"createdAt":"2024-09-09T19:46:02Z"}}}`

	_, cursor, err := decodeEvent([]byte(msg))
	assert.ErrorIs(t, err, domain.ErrMalformed)
	assert.Equal(t, int64(3), cursor)
}

func TestDecodePostWithReplyAndImages(t *testing.T) {
	assert := assert.New(t)
	msg := `{"did":"did:plc:bob","time_us":4,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3kpost","record":{"$type":"app.bsky.feed.post","text":"look","createdAt":"2024-09-09T19:46:02.5+02:00","langs":["en","de"],"tags":["cats"],"reply":{"root":{"uri":"at://did:plc:carol/app.bsky.feed.post/r","cid":"bafyroot"},"parent":{"uri":"at://did:plc:carol/app.bsky.feed.post/p","cid":"bafyparent"}},"embed":{"$type":"app.bsky.embed.images","images":[{"alt":"a cat","image":{"$type":"blob","ref":{"$link":"bafkimg"},"mimeType":"image/jpeg","size":100},"aspectRatio":{"width":16,"height":9}}]}}}}`

	ev, _, err := decodeEvent([]byte(msg))
	require.NoError(t, err)

	post := ev.(*domain.PostEvent)
	assert.Equal("at://did:plc:bob/app.bsky.feed.post/3kpost", post.ID)
	assert.Equal("did:plc:bob", post.Author)
	assert.Equal("look", post.Text)
	assert.Equal("en", *post.Language)
	assert.Equal([]string{"cats"}, post.Tags)
	assert.Equal(time.Date(2024, 9, 9, 17, 46, 2, 500000000, time.UTC), post.CreatedAt)
	assert.Equal(&domain.Reply{
		Parent: "at://did:plc:carol/app.bsky.feed.post/p",
		Root:   "at://did:plc:carol/app.bsky.feed.post/r",
	}, post.Reply)

	media, ok := post.Embed.(*domain.MediaEmbed)
	require.True(t, ok)
	require.Len(t, media.Items, 1)
	assert.Equal(domain.MediaItem{
		Kind:        domain.MediaImage,
		Blob:        &domain.Blob{CID: "bafkimg", MimeType: "image/jpeg", Size: int64Ptr(100)},
		Alt:         strPtr("a cat"),
		AspectRatio: &domain.AspectRatio{Width: 16, Height: 9},
	}, media.Items[0])
}

func TestDecodeEmbeds(t *testing.T) {
	cases := []struct {
		name  string
		embed string
		want  domain.Embed
	}{
		{
			name:  "video",
			embed: `{"$type":"app.bsky.embed.video","video":{"$type":"blob","ref":{"$link":"bafkvid"},"mimeType":"video/mp4","size":5000}}`,
			want: &domain.MediaEmbed{Items: []domain.MediaItem{{
				Kind: domain.MediaVideo,
				Blob: &domain.Blob{CID: "bafkvid", MimeType: "video/mp4", Size: int64Ptr(5000)},
			}}},
		},
		{
			name:  "external",
			embed: `{"$type":"app.bsky.embed.external","external":{"uri":"https://example.com","title":"Example","description":"d"}}`,
			want:  &domain.ExternalEmbed{URI: "https://example.com", Title: "Example", Description: "d"},
		},
		{
			name:  "record",
			embed: `{"$type":"app.bsky.embed.record","record":{"uri":"at://did:plc:x/app.bsky.feed.post/q","cid":"bafyq"}}`,
			want:  &domain.RecordEmbed{URI: "at://did:plc:x/app.bsky.feed.post/q", CID: "bafyq"},
		},
		{
			name:  "recordWithMedia keeps media",
			embed: `{"$type":"app.bsky.embed.recordWithMedia","record":{"$type":"app.bsky.embed.record","record":{"uri":"at://did:plc:x/app.bsky.feed.post/q","cid":"bafyq"}},"media":{"$type":"app.bsky.embed.external","external":{"uri":"https://example.com","title":"t","description":""}}}`,
			want:  &domain.ExternalEmbed{URI: "https://example.com", Title: "t"},
		},
		{
			name:  "recordWithMedia with unknown media falls back to record",
			embed: `{"$type":"app.bsky.embed.recordWithMedia","record":{"record":{"uri":"at://did:plc:x/app.bsky.feed.post/q","cid":"bafyq"}},"media":{"$type":"app.example.unknown"}}`,
			want:  &domain.RecordEmbed{URI: "at://did:plc:x/app.bsky.feed.post/q", CID: "bafyq"},
		},
		{
			name:  "unknown",
			embed: `{"$type":"app.example.unknown"}`,
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeEmbed([]byte(tc.embed))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeOtherEvents(t *testing.T) {
	cases := map[string]string{
		"identity":    `{"did":"did:plc:a","time_us":5,"kind":"identity","identity":{"did":"did:plc:a","handle":"a.test"}}`,
		"delete":      `{"did":"did:plc:a","time_us":6,"kind":"commit","commit":{"operation":"delete","collection":"app.bsky.feed.post","rkey":"x"}}`,
		"follow":      `{"did":"did:plc:a","time_us":7,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.graph.follow","rkey":"x","record":{"subject":"did:plc:b"}}}`,
		"like update": `{"did":"did:plc:a","time_us":8,"kind":"commit","commit":{"operation":"update","collection":"app.bsky.feed.like","rkey":"x","record":{}}}`,
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			ev, _, err := decodeEvent([]byte(msg))
			require.NoError(t, err)
			assert.IsType(t, &domain.OtherEvent{}, ev)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, msg := range []string{
		`{not json`,
		`{"did":"did:plc:a","time_us":9,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"x","record":{"text":"no date"}}}`,
		`{"did":"did:plc:a","time_us":9,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"x","record":{"text":"t","createdAt":"2024-09-09"}}}`,
	} {
		_, _, err := decodeEvent([]byte(msg))
		assert.ErrorIs(t, err, domain.ErrMalformed, msg)
	}
}

func TestDecodeLenientCreatedAt(t *testing.T) {
	want := time.Date(2024, 9, 9, 19, 46, 2, 0, time.UTC)
	cases := map[string]time.Time{
		"2024-09-09T19:46:02":          want,
		"2024-09-09T19:46:02.123+0000": want.Add(123 * time.Millisecond),
		"2024-09-09T21:46:02+02:00":    want,
		"2024-09-09T19:46:02-00:00":    want,
	}
	for raw, expected := range cases {
		t.Run(raw, func(t *testing.T) {
			msg := `{"did":"did:plc:a","time_us":10,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3kpost","record":{"text":"t","createdAt":"` + raw + `"}}}`
			ev, _, err := decodeEvent([]byte(msg))
			require.NoError(t, err)
			post := ev.(*domain.PostEvent)
			assert.True(t, expected.Equal(post.CreatedAt), "got %s", post.CreatedAt)
			assert.Equal(t, time.UTC, post.CreatedAt.Location())
		})
	}
}

func TestDecodePostInvalidURI(t *testing.T) {
	msg := `{"did":"not a did","time_us":11,"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"x","record":{"text":"t","createdAt":"2024-09-09T19:46:02Z"}}}`
	_, cursor, err := decodeEvent([]byte(msg))
	assert.ErrorIs(t, err, domain.ErrMalformed)
	assert.Equal(t, int64(11), cursor)
}

func int64Ptr(v int64) *int64 { return &v }
func strPtr(v string) *string  { return &v }
