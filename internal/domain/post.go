package domain

// Post maps a post event to its row, normalizing the embed and flattening
// the reply reference. A top-level post gets an all-null reply struct.
func (t *Transformer) Post(ev *PostEvent) (*PostRow, error) {
	if ev == nil || ev.ID == "" {
		return nil, Malformed("post event without id")
	}
	if ev.Author == "" {
		return nil, Malformed("post %s without author", ev.ID)
	}

	row := &PostRow{
		ID:        ev.ID,
		Author:    ev.Author,
		CreatedAt: ev.CreatedAt.UTC(),
		Text:      ev.Text,
		Language:  ev.Language,
		Tags:      copyStrings(ev.Tags),
		Labels:    copyStrings(ev.Labels),
		Embed:     t.normalizeEmbed(ev.Embed, ev.ID),
	}
	if ev.Reply != nil {
		row.Reply = ReplyStruct{
			Parent: optString(ev.Reply.Parent),
			Root:   optString(ev.Reply.Root),
		}
	}
	return row, nil
}
