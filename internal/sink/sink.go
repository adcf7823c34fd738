// Package sink provides consumers for reassembled frames.
package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/danmuck/udpstream/internal/receiver"
)

var ErrEmptyDir = errors.New("sink: output directory is required")

// Sink accepts frames in completion order. A Write error stops the consumer.
type Sink interface {
	Write(frame receiver.Frame) error
}

// Dir writes each frame to <root>/frame-<id>.bin. A reused frame id
// overwrites the earlier file.
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	resolved := strings.TrimSpace(root)
	if resolved == "" {
		return nil, ErrEmptyDir
	}
	if err := os.MkdirAll(resolved, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", resolved, err)
	}
	return &Dir{root: resolved}, nil
}

func (d *Dir) Root() string {
	return d.root
}

// Path is where the frame with id is stored.
func (d *Dir) Path(id uint32) string {
	return filepath.Join(d.root, fmt.Sprintf("frame-%d.bin", id))
}

// Write stages the payload in a temp file and renames it into place so a
// reader never sees a partial frame.
func (d *Dir) Write(frame receiver.Frame) error {
	tmp, err := os.CreateTemp(d.root, ".frame-*.tmp")
	if err != nil {
		return fmt.Errorf("sink: stage frame %d: %w", frame.ID, err)
	}
	if _, err := tmp.Write(frame.Payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: write frame %d: %w", frame.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: write frame %d: %w", frame.ID, err)
	}
	if err := os.Rename(tmp.Name(), d.Path(frame.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("sink: commit frame %d: %w", frame.ID, err)
	}
	return nil
}

// Discard counts frames and drops them.
type Discard struct {
	frames atomic.Uint64
	bytes  atomic.Uint64
}

func (d *Discard) Write(frame receiver.Frame) error {
	d.frames.Add(1)
	d.bytes.Add(uint64(len(frame.Payload)))
	return nil
}

func (d *Discard) Frames() uint64 {
	return d.frames.Load()
}

func (d *Discard) Bytes() uint64 {
	return d.bytes.Load()
}
