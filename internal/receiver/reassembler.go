package receiver

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/danmuck/udpstream/internal/observability"
	"github.com/danmuck/udpstream/internal/protocol/header"
)

const (
	// DefaultSlots is the number of frames that may be in flight at once.
	DefaultSlots = 100

	// DefaultMaxFragments bounds the per-slot fragment table a single
	// header can make the receiver allocate.
	DefaultMaxFragments = 1 << 16
)

var (
	ErrMalformed = errors.New("receiver: malformed datagram")
	ErrStale     = errors.New("receiver: fragment for a frame not held by its slot")
)

// Frame is one reassembled payload.
type Frame struct {
	ID      uint32
	Tag     uint32
	Payload []byte
}

// slot accumulates fragments for at most one frame. It is reset by the
// frame's first fragment and left stale after completion.
type slot struct {
	frameID  uint32
	tag      uint32
	parts    [][]byte
	received uint32
	expected uint32
	live     bool
}

func (s *slot) reset(h header.Header) {
	s.frameID = h.FrameID
	s.tag = h.Tag
	if cap(s.parts) >= int(h.FragmentCount) {
		s.parts = s.parts[:h.FragmentCount]
		clear(s.parts)
	} else {
		s.parts = make([][]byte, h.FragmentCount)
	}
	s.received = 0
	s.expected = h.FragmentCount
	s.live = true
}

func (s *slot) incomplete() bool {
	return s.live && s.received < s.expected
}

// Stats counts what the reassembler has seen. Fields are safe to read while
// Push runs on another goroutine.
type Stats struct {
	Datagrams atomic.Uint64
	Malformed atomic.Uint64
	Stale     atomic.Uint64
	Evicted   atomic.Uint64
	Completed atomic.Uint64
	Bytes     atomic.Uint64
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	Datagrams uint64 `json:"datagrams"`
	Malformed uint64 `json:"malformed"`
	Stale     uint64 `json:"stale"`
	Evicted   uint64 `json:"evicted"`
	Completed uint64 `json:"completed"`
	Bytes     uint64 `json:"bytes"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Datagrams: s.Datagrams.Load(),
		Malformed: s.Malformed.Load(),
		Stale:     s.Stale.Load(),
		Evicted:   s.Evicted.Load(),
		Completed: s.Completed.Load(),
		Bytes:     s.Bytes.Load(),
	}
}

// Reassembler rebuilds frames from fragments using a fixed arena of slots
// indexed by frame_id mod len(slots). It is not safe for concurrent Push.
type Reassembler struct {
	slots        []slot
	maxFragments uint32
	stats        Stats
}

type Option func(*Reassembler)

// WithMaxFragments caps fragment_count; larger frames are dropped as
// malformed.
func WithMaxFragments(n int) Option {
	return func(r *Reassembler) {
		if n > 0 && uint64(n) <= math.MaxUint32 {
			r.maxFragments = uint32(n)
		}
	}
}

// NewReassembler allocates n slots up front; n <= 0 selects DefaultSlots.
func NewReassembler(n int, opts ...Option) *Reassembler {
	if n <= 0 {
		n = DefaultSlots
	}
	r := &Reassembler{
		slots:        make([]slot, n),
		maxFragments: DefaultMaxFragments,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reassembler) Slots() int {
	return len(r.slots)
}

// Push feeds one datagram. It returns a frame when the datagram completes
// one. Errors wrap ErrMalformed or ErrStale; they describe a skipped datagram
// and never invalidate the reassembler.
//
// Completion is decided by count alone: a duplicate fragment can stand in
// for a missing one, leaving a nil gap in the joined payload.
func (r *Reassembler) Push(datagram []byte) (Frame, bool, error) {
	r.stats.Datagrams.Add(1)
	observability.RecordDatagram()

	h, payload, err := header.Decode(datagram)
	if err == nil {
		err = h.Validate()
	}
	if err == nil && h.FragmentCount > r.maxFragments {
		err = fmt.Errorf("fragment_count %d exceeds %d", h.FragmentCount, r.maxFragments)
	}
	if err != nil {
		r.stats.Malformed.Add(1)
		observability.RecordDrop(observability.DropMalformed)
		return Frame{}, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	s := &r.slots[h.FrameID%uint32(len(r.slots))]
	if h.First() {
		if s.incomplete() {
			r.stats.Evicted.Add(1)
			observability.RecordEviction()
		}
		s.reset(h)
	}
	if !s.live || s.frameID != h.FrameID || h.FragmentIndex > s.expected {
		r.stats.Stale.Add(1)
		observability.RecordDrop(observability.DropStale)
		return Frame{}, false, fmt.Errorf("%w: frame_id=%d fragment=%d/%d", ErrStale, h.FrameID, h.FragmentIndex, h.FragmentCount)
	}

	// payload aliases the caller's read buffer
	s.parts[h.FragmentIndex-1] = append([]byte(nil), payload...)
	s.received++
	if s.received != s.expected {
		return Frame{}, false, nil
	}

	frame := Frame{ID: s.frameID, Tag: s.tag, Payload: join(s.parts)}
	r.stats.Completed.Add(1)
	r.stats.Bytes.Add(uint64(len(frame.Payload)))
	observability.RecordFrameCompleted(len(frame.Payload))
	return frame, true, nil
}

// dropOversize accounts for a datagram the transport truncated.
func (r *Reassembler) dropOversize() {
	r.stats.Datagrams.Add(1)
	r.stats.Malformed.Add(1)
	observability.RecordDatagram()
	observability.RecordDrop(observability.DropOversize)
}

func (r *Reassembler) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

func join(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
