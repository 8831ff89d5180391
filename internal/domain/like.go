package domain

// Like maps a like event to its two independent writes: an audit append and
// a counter increment for the liked subject. Neither is idempotent under
// redelivery.
func (t *Transformer) Like(ev *LikeEvent) (*LikeRows, error) {
	if ev == nil || ev.Author == "" {
		return nil, Malformed("like event without author")
	}
	if ev.Subject == "" {
		return nil, Malformed("like by %s without subject", ev.Author)
	}
	if ev.CreatedAt.IsZero() {
		return nil, Malformed("like by %s of %s without createdAt", ev.Author, ev.Subject)
	}

	return &LikeRows{
		Audit: LikeAuthorRow{
			Author:    ev.Author,
			Subject:   ev.Subject,
			CreatedAt: ev.CreatedAt.UTC(),
			CID:       ev.CID,
		},
		CounterSubject: ev.Subject,
	}, nil
}
