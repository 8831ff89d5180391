package firehose

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/blackmichael/bluesky-ingest/internal/domain"
)

const maxLineSize = 4 << 20

// FileSource replays Jetstream messages captured one per line, for example
// with `websocat wss://jetstream.../subscribe > capture.jsonl`. Unlike the
// live subscriber, its sequence ends at end of input.
type FileSource struct {
	reader  *bufio.Reader
	buf     []byte
	line    int
	maxLine int
}

// NewFileSource reads newline-delimited Jetstream JSON from r.
func NewFileSource(r io.Reader) *FileSource {
	return &FileSource{
		reader:  bufio.NewReaderSize(r, 64*1024),
		maxLine: maxLineSize,
	}
}

// Next returns the next decoded event, or io.EOF after the last line. A line
// that fails to decode or exceeds the size limit is reported as malformed and
// skipped, so the caller can keep reading.
func (f *FileSource) Next(ctx context.Context) (domain.Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, tooLong, err := f.readLine()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", f.line+1, err)
		}
		f.line++

		if tooLong {
			return nil, domain.Malformed("line %d: longer than %d bytes", f.line, f.maxLine)
		}
		if len(data) == 0 {
			continue
		}
		ev, _, err := decodeEvent(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", f.line, err)
		}
		return ev, nil
	}
}

// readLine returns the next line without its terminator. Oversized lines are
// consumed to their end and reported with tooLong set.
func (f *FileSource) readLine() (data []byte, tooLong bool, err error) {
	f.buf = f.buf[:0]
	for {
		chunk, isPrefix, err := f.reader.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(f.buf)+len(chunk) > f.maxLine {
				tooLong = true
				f.buf = f.buf[:0]
			} else {
				f.buf = append(f.buf, chunk...)
			}
		}
		if !isPrefix {
			return f.buf, tooLong, nil
		}
	}
}
