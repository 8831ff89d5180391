package domain

import (
	"log/slog"
	"math"
)

// Transformer maps incoming events to storage rows. It holds no state other
// than the logger used for data-quality warnings, so one value can be shared.
type Transformer struct {
	logger *slog.Logger
}

// NewTransformer creates a Transformer. A nil logger discards warnings.
func NewTransformer(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transformer{logger: logger}
}

// normalizeBlob flattens a present blob. A missing size is stored as null
// and reported; it does not fail the record.
func (t *Transformer) normalizeBlob(b *Blob, owner string) BlobStruct {
	if b == nil {
		return BlobStruct{}
	}
	out := BlobStruct{
		CID:      optString(b.CID),
		MimeType: optString(b.MimeType),
	}
	if b.Size != nil {
		size := *b.Size
		out.Size = &size
	} else {
		blobsMissingSize.Inc()
		t.logger.Warn("blob has no size, storing null", "owner", owner, "cid", b.CID)
	}
	return out
}

// aspectMap returns {"width": w, "height": h}, or nil when ratio is absent.
func aspectMap(ratio *AspectRatio) map[string]int32 {
	if ratio == nil {
		return nil
	}
	return map[string]int32{
		"width":  clampInt32(ratio.Width),
		"height": clampInt32(ratio.Height),
	}
}

func clampInt32(v int64) int32 {
	switch {
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// optString maps the empty string to nil.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
