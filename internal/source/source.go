// Package source provides frame producers for the sender.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/udpstream/internal/sender"
)

var ErrInvalidChunkSize = errors.New("source: chunk size must be positive")

type files struct {
	tag   uint32
	paths []string
	next  int
}

// Files yields the contents of each path as one frame, in order. A file that
// cannot be read aborts the stream.
func Files(tag uint32, paths ...string) sender.Source {
	return &files{tag: tag, paths: paths}
}

func (f *files) Next(ctx context.Context) (sender.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return sender.Item{}, false, err
	}
	if f.next >= len(f.paths) {
		return sender.Item{}, false, nil
	}
	path := f.paths[f.next]
	f.next++
	payload, err := os.ReadFile(path)
	if err != nil {
		return sender.Item{}, false, fmt.Errorf("source: read %s: %w", path, err)
	}
	return sender.Item{Tag: f.tag, Payload: payload}, true, nil
}

type chunks struct {
	tag  uint32
	r    io.Reader
	size int
}

// Chunks cuts r into frames of size bytes; the final frame may be shorter.
func Chunks(tag uint32, r io.Reader, size int) (sender.Source, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidChunkSize, size)
	}
	return &chunks{tag: tag, r: r, size: size}, nil
}

func (c *chunks) Next(ctx context.Context) (sender.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return sender.Item{}, false, err
	}
	buf := make([]byte, c.size)
	n, err := io.ReadFull(c.r, buf)
	switch {
	case errors.Is(err, io.EOF):
		return sender.Item{}, false, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return sender.Item{Tag: c.tag, Payload: buf[:n]}, true, nil
	case err != nil:
		return sender.Item{}, false, fmt.Errorf("source: read chunk: %w", err)
	}
	return sender.Item{Tag: c.tag, Payload: buf}, true, nil
}

type synthetic struct {
	tag      uint32
	count    int
	size     int
	produced int
}

// Synthetic yields count frames of size bytes with a pattern derived from
// the frame's position. count <= 0 never ends.
func Synthetic(tag uint32, count, size int) sender.Source {
	return &synthetic{tag: tag, count: count, size: max(size, 0)}
}

func (s *synthetic) Next(ctx context.Context) (sender.Item, bool, error) {
	if err := ctx.Err(); err != nil {
		return sender.Item{}, false, err
	}
	if s.count > 0 && s.produced >= s.count {
		return sender.Item{}, false, nil
	}
	s.produced++
	return sender.Item{Tag: s.tag, Payload: Pattern(s.produced, s.size)}, true, nil
}

// Pattern is the payload Synthetic emits for its seq'th frame, starting at 1.
func Pattern(seq, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(seq + i*31)
	}
	return out
}
