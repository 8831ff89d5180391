package scylla

import "github.com/blackmichael/bluesky-ingest/internal/domain"

// The structs below mirror the user-defined types created in schema.go.
// gocql marshals them field by field using the cql tags; nil pointers are
// written as null.

type blobUDT struct {
	CID      *string `cql:"cid"`
	MimeType *string `cql:"mime_type"`
	Size     *int64  `cql:"size"`
}

type replyUDT struct {
	Parent *string `cql:"parent"`
	Root   *string `cql:"root"`
}

type mediaUDT struct {
	Kind        string           `cql:"kind"`
	Alt         *string          `cql:"alt"`
	Blob        blobUDT          `cql:"blob"`
	AspectRatio map[string]int32 `cql:"aspect_ratio"`
}

type externalUDT struct {
	Description string   `cql:"description"`
	Thumb       *blobUDT `cql:"thumb"`
	Title       string   `cql:"title"`
	URI         string   `cql:"uri"`
}

type embeddingsUDT struct {
	Media    []mediaUDT   `cql:"media"`
	External *externalUDT `cql:"external"`
	Record   *string      `cql:"record"`
}

func toBlobUDT(b domain.BlobStruct) blobUDT {
	return blobUDT{CID: b.CID, MimeType: b.MimeType, Size: b.Size}
}

func toReplyUDT(r domain.ReplyStruct) replyUDT {
	return replyUDT{Parent: r.Parent, Root: r.Root}
}

func toEmbeddingsUDT(e domain.EmbedStruct) embeddingsUDT {
	out := embeddingsUDT{
		Media:  make([]mediaUDT, 0, len(e.Media)),
		Record: e.Record,
	}
	for _, m := range e.Media {
		out.Media = append(out.Media, mediaUDT{
			Kind:        m.Kind,
			Alt:         m.Alt,
			Blob:        toBlobUDT(m.Blob),
			AspectRatio: m.AspectRatio,
		})
	}
	if e.External != nil {
		ext := &externalUDT{
			Description: e.External.Description,
			Title:       e.External.Title,
			URI:         e.External.URI,
		}
		if e.External.Thumb != nil {
			thumb := toBlobUDT(*e.External.Thumb)
			ext.Thumb = &thumb
		}
		out.External = ext
	}
	return out
}
