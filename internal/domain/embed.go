package domain

// normalizeEmbed produces the denormalized embed of a post. Exactly the
// branch matching the embed variant is populated; with no embed the media
// list is empty and the other branches are nil.
func (t *Transformer) normalizeEmbed(e Embed, owner string) EmbedStruct {
	out := EmbedStruct{Media: []MediaEmbedItem{}}

	switch v := e.(type) {
	case *MediaEmbed:
		for _, item := range v.Items {
			out.Media = append(out.Media, MediaEmbedItem{
				Kind:        string(item.Kind),
				Alt:         item.Alt,
				Blob:        t.normalizeBlob(item.Blob, owner),
				AspectRatio: aspectMap(item.AspectRatio),
			})
		}
	case *ExternalEmbed:
		ref := &ExternalRef{
			Description: v.Description,
			Title:       v.Title,
			URI:         v.URI,
		}
		if v.Thumb != nil {
			thumb := t.normalizeBlob(v.Thumb, owner)
			ref.Thumb = &thumb
		}
		out.External = ref
	case *RecordEmbed:
		// The record branch stores the quoted record's CID; the URI is only
		// used when the reference carried no CID.
		if v.CID != "" {
			out.Record = optString(v.CID)
		} else {
			out.Record = optString(v.URI)
		}
	}

	return out
}
