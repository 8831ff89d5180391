package domain

// Profile maps a profile event to its row. Every optional input field maps to
// an independently nullable column; a missing avatar yields an all-null
// avatar struct rather than no struct.
func (t *Transformer) Profile(ev *ProfileEvent) (*ProfileRow, error) {
	if ev == nil || ev.DID == "" {
		return nil, Malformed("profile event without did")
	}

	row := &ProfileRow{
		DID:         ev.DID,
		Avatar:      t.normalizeBlob(ev.Avatar, ev.DID),
		Description: ev.Description,
		DisplayName: ev.DisplayName,
		Labels:      copyStrings(ev.Labels),
		PinnedPost:  ev.PinnedPost,
	}
	if ev.CreatedAt != nil {
		createdAt := ev.CreatedAt.UTC()
		row.CreatedAt = &createdAt
	}
	return row, nil
}
