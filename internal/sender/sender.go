package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/udpstream/internal/observability"
	"github.com/danmuck/udpstream/internal/protocol/header"
	"github.com/danmuck/udpstream/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrDataGeneration = errors.New("sender: data generation failed")
	ErrPacketCreation = errors.New("sender: packet creation failed")
	ErrPacketSend     = errors.New("sender: packet send failed")
)

// Conn is the write side of the transport.
type Conn interface {
	Send(b []byte) error
}

// Stats summarizes one stream.
type Stats struct {
	Frames      uint64
	EmptyFrames uint64
	Fragments   uint64
	Bytes       uint64
}

// Fragmenter splits items into fragments and writes them to a Conn in order.
type Fragmenter struct {
	conn      Conn
	size      int
	pacer     *rate.Limiter
	terminate bool
	newHeader func(tag, frameID uint32, index, count int) (header.Header, error)
	nextID    uint32
	buf       []byte
	stats     Stats
	log       zerolog.Logger
}

// NewFragmenter does not validate cfg; SendStream does that before the
// socket is opened.
func NewFragmenter(conn Conn, cfg Config) *Fragmenter {
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	pacer := rate.NewLimiter(rate.Inf, 1)
	if cfg.Pacing > 0 {
		pacer = rate.NewLimiter(rate.Every(cfg.Pacing), 1)
	}
	return &Fragmenter{
		conn:      conn,
		size:      cfg.FragmentPayload(),
		pacer:     pacer,
		terminate: cfg.Terminate,
		newHeader: header.New,
		nextID:    1,
		buf:       make([]byte, 0, cfg.PacketSize),
		log:       logger,
	}
}

// SendStream validates cfg, opens a socket to the destination, and sends
// every item from src until it is exhausted or a failure aborts the stream.
// The socket is closed on every return path.
func SendStream(ctx context.Context, src Source, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	conn, err := transport.Dial(cfg.Address, cfg.Port)
	if err != nil {
		return Stats{}, err
	}
	defer conn.Close()

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("stream", uuid.NewString()).Logger()
	cfg.Logger = &logger

	f := NewFragmenter(conn, cfg)
	logger.Info().
		Str("dst", conn.Destination().String()).
		Int("packet_size", cfg.PacketSize).
		Dur("pacing", cfg.Pacing).
		Msg("send stream started")

	err = f.Run(ctx, src)
	stats := f.Stats()
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Uint64("frames", stats.Frames).
		Uint64("fragments", stats.Fragments).
		Uint64("bytes", stats.Bytes).
		Msg("send stream finished")
	return stats, err
}

// Run pulls items from src one at a time and sends each one completely
// before pulling the next.
func (f *Fragmenter) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok, err := src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			observability.RecordSendFailure("data_generation")
			return fmt.Errorf("%w: %w", ErrDataGeneration, err)
		}
		if !ok {
			break
		}
		if _, err := f.SendFrame(ctx, item); err != nil {
			return err
		}
	}

	if f.terminate {
		if err := f.send(ctx, nil); err != nil {
			if isContextErr(err) {
				return err
			}
			return fmt.Errorf("%w: end-of-stream sentinel: %w", ErrPacketSend, err)
		}
		f.log.Debug().Msg("end-of-stream sentinel sent")
	}
	return nil
}

// SendFrame assigns the next frame id to item and sends its fragments.
// It returns the number of fragments written.
func (f *Fragmenter) SendFrame(ctx context.Context, item Item) (int, error) {
	frameID := f.nextID
	f.nextID++

	slices := Split(item.Payload, f.size)
	f.stats.Frames++
	if len(slices) == 0 {
		f.stats.EmptyFrames++
		observability.RecordFrameSent(0, 0)
		f.log.Warn().
			Uint32("frame_id", frameID).
			Uint32("tag", item.Tag).
			Msg("empty payload produces no fragments; frame skipped")
		return 0, nil
	}

	var sent int
	for i, slice := range slices {
		h, err := f.newHeader(item.Tag, frameID, i+1, len(slices))
		if err != nil {
			observability.RecordSendFailure("packet_creation")
			return i, fmt.Errorf("%w: frame_id=%d: %w", ErrPacketCreation, frameID, err)
		}
		pkt := header.AppendEncode(f.buf[:0], h)
		pkt = append(pkt, slice...)
		f.buf = pkt[:0]

		if err := f.send(ctx, pkt); err != nil {
			if isContextErr(err) {
				return i, err
			}
			observability.RecordSendFailure("packet_send")
			return i, fmt.Errorf("%w: frame_id=%d fragment=%d/%d size=%d: %w",
				ErrPacketSend, frameID, i+1, len(slices), len(pkt), err)
		}
		sent += len(pkt)
	}

	f.stats.Fragments += uint64(len(slices))
	f.stats.Bytes += uint64(sent)
	observability.RecordFrameSent(len(slices), sent)
	f.log.Debug().
		Uint32("frame_id", frameID).
		Uint32("tag", item.Tag).
		Int("fragments", len(slices)).
		Int("bytes", len(item.Payload)).
		Msg("frame sent")
	return len(slices), nil
}

func (f *Fragmenter) send(ctx context.Context, pkt []byte) error {
	if err := f.pacer.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// the limiter refuses waits that would outlive the ctx deadline
		return context.DeadlineExceeded
	}
	return f.conn.Send(pkt)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (f *Fragmenter) Stats() Stats {
	return f.stats
}

// NextFrameID is the id the next item will receive.
func (f *Fragmenter) NextFrameID() uint32 {
	return f.nextID
}

// Split cuts payload into ceil(len/size) consecutive slices that alias
// payload. An empty payload yields no slices.
func Split(payload []byte, size int) [][]byte {
	if len(payload) == 0 || size <= 0 {
		return nil
	}
	out := make([][]byte, 0, (len(payload)+size-1)/size)
	for off := 0; off < len(payload); off += size {
		end := min(off+size, len(payload))
		out = append(out, payload[off:end])
	}
	return out
}
