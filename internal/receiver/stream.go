package receiver

import (
	"context"
	"errors"
	"iter"
	"net"
	"sync/atomic"
	"time"

	"github.com/danmuck/udpstream/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// pollInterval bounds a single blocking read so cancellation is noticed.
const pollInterval = 250 * time.Millisecond

// Stream is a bound socket feeding a Reassembler. Next is meant to be called
// from a single goroutine; Close and Stats may be called from any.
type Stream struct {
	lis        *transport.Listener
	asm        *Reassembler
	buf        []byte
	packetSize int
	idle       time.Duration
	idleSince  time.Time

	done   bool
	err    error
	closed atomic.Bool
	log    zerolog.Logger
}

// ReceiveStream validates cfg and binds the listening socket. Frames are
// pulled with Next or Frames; the socket is released once the stream ends.
func ReceiveStream(ctx context.Context, cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lis, err := transport.Listen(cfg.Address, cfg.Port)
	if err != nil {
		return nil, err
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("stream", uuid.NewString()).Logger()

	idle := cfg.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	var opts []Option
	if cfg.MaxFragments > 0 {
		opts = append(opts, WithMaxFragments(cfg.MaxFragments))
	}

	s := &Stream{
		lis:        lis,
		asm:        NewReassembler(cfg.Slots, opts...),
		buf:        make([]byte, cfg.PacketSize+1), // one spare byte exposes oversize datagrams
		packetSize: cfg.PacketSize,
		idle:       idle,
		log:        logger,
	}
	logger.Info().
		Str("addr", lis.LocalAddr().String()).
		Int("packet_size", cfg.PacketSize).
		Int("slots", s.asm.Slots()).
		Dur("idle_timeout", idle).
		Msg("receive stream started")
	return s, nil
}

// Next blocks until a frame completes. It returns ok == false once the
// stream has ended: idle timeout, end-of-stream sentinel, ctx cancellation,
// or Close. Only transport failures are reported as errors.
//
// The idle clock starts when Next is called and restarts on every datagram,
// so time spent by the caller between calls never counts against it.
func (s *Stream) Next(ctx context.Context) (Frame, bool, error) {
	if s.done {
		return Frame{}, false, s.err
	}
	s.idleSince = time.Now()
	for {
		if ctx.Err() != nil {
			s.finish("canceled", nil)
			return Frame{}, false, nil
		}
		remaining := s.idle - time.Since(s.idleSince)
		if remaining <= 0 {
			s.finish("idle timeout", nil)
			return Frame{}, false, nil
		}

		n, err := s.lis.Recv(s.buf, time.Now().Add(min(remaining, pollInterval)))
		switch {
		case errors.Is(err, transport.ErrTimeout):
			continue
		case errors.Is(err, transport.ErrClosed):
			s.finish("closed", nil)
			return Frame{}, false, nil
		case err != nil:
			s.finish("transport error", err)
			return Frame{}, false, err
		}
		s.idleSince = time.Now()

		if n == 0 {
			s.finish("end-of-stream sentinel", nil)
			return Frame{}, false, nil
		}
		if n > s.packetSize {
			s.asm.dropOversize()
			s.log.Debug().Int("limit", s.packetSize).Msg("oversize datagram dropped")
			continue
		}

		frame, ok, err := s.asm.Push(s.buf[:n])
		if err != nil {
			s.log.Debug().Err(err).Int("bytes", n).Msg("datagram dropped")
			continue
		}
		if ok {
			s.log.Debug().
				Uint32("frame_id", frame.ID).
				Uint32("tag", frame.Tag).
				Int("bytes", len(frame.Payload)).
				Msg("frame completed")
			return frame, true, nil
		}
	}
}

// Frames yields completed frames until the stream ends. Breaking out of the
// loop closes the stream; check Err afterwards for a transport failure.
func (s *Stream) Frames(ctx context.Context) iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		defer s.Close()
		for {
			frame, ok, err := s.Next(ctx)
			if err != nil || !ok {
				return
			}
			if !yield(frame) {
				return
			}
		}
	}
}

// Err is the transport failure that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the socket. It is idempotent; a closed stream cannot be
// restarted.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.lis.Close()
}

func (s *Stream) Stats() StatsSnapshot {
	return s.asm.Stats()
}

func (s *Stream) LocalAddr() *net.UDPAddr {
	return s.lis.LocalAddr()
}

func (s *Stream) finish(reason string, err error) {
	s.done = true
	s.err = err
	_ = s.Close()

	stats := s.asm.Stats()
	event := s.log.Info()
	if err != nil {
		event = s.log.Error().Err(err)
	}
	event.
		Str("reason", reason).
		Uint64("frames", stats.Completed).
		Uint64("datagrams", stats.Datagrams).
		Uint64("malformed", stats.Malformed).
		Uint64("stale", stats.Stale).
		Uint64("evicted", stats.Evicted).
		Msg("receive stream finished")
}
