package receiver

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/danmuck/udpstream/internal/protocol/header"
	"github.com/danmuck/udpstream/internal/sender"
	"github.com/danmuck/udpstream/internal/testutil/testlog"
	"github.com/danmuck/udpstream/internal/transport"
	"github.com/danmuck/udpstream/internal/validate"
	"github.com/stretchr/testify/require"
)

func startStream(t *testing.T, mutate func(*Config)) *Stream {
	t.Helper()
	logger := testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.IdleTimeout = 2 * time.Second
	cfg.Logger = &logger
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := ReceiveStream(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func collect(ctx context.Context, s *Stream) <-chan []Frame {
	out := make(chan []Frame, 1)
	go func() {
		var frames []Frame
		for f := range s.Frames(ctx) {
			frames = append(frames, f)
		}
		out <- frames
	}()
	return out
}

func senderConfig(t *testing.T, s *Stream, packetSize int) sender.Config {
	logger := testlog.Start(t)
	cfg := sender.DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = s.LocalAddr().Port
	cfg.PacketSize = packetSize
	cfg.Pacing = 100 * time.Microsecond
	cfg.Terminate = true
	cfg.Logger = &logger
	return cfg
}

func TestStreamRoundTrip(t *testing.T) {
	s := startStream(t, nil)
	done := collect(context.Background(), s)

	items := []sender.Item{
		{Tag: 1, Payload: bytes.Repeat([]byte("a"), 3000)},
		{Tag: 2, Payload: []byte("short")},
		{Tag: 3, Payload: bytes.Repeat([]byte("c"), 1008)},
	}
	stats, err := sender.SendStream(context.Background(), sender.SliceSource(items...), senderConfig(t, s, 1024))
	require.NoError(t, err)
	require.Equal(t, uint64(3+1+1), stats.Fragments)

	frames := <-done
	require.NoError(t, s.Err())
	require.Len(t, frames, len(items))
	for i, f := range frames {
		require.Equal(t, uint32(i+1), f.ID)
		require.Equal(t, items[i].Tag, f.Tag)
		require.Equal(t, items[i].Payload, f.Payload)
	}
	require.Equal(t, uint64(3), s.Stats().Completed)
}

func TestStreamConcreteScenario(t *testing.T) {
	s := startStream(t, nil)
	done := collect(context.Background(), s)

	payload := make([]byte, 100000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	stats, err := sender.SendStream(context.Background(),
		sender.SliceSource(sender.Item{Tag: 42, Payload: payload}), senderConfig(t, s, 1024))
	require.NoError(t, err)
	require.Equal(t, uint64(100), stats.Fragments)

	frames := <-done
	require.Len(t, frames, 1)
	require.Equal(t, uint32(1), frames[0].ID)
	require.Equal(t, uint32(42), frames[0].Tag)
	require.Equal(t, payload, frames[0].Payload)
	require.Equal(t, uint64(100), s.Stats().Datagrams)
}

func TestStreamSkipsMalformedAndOversize(t *testing.T) {
	s := startStream(t, func(c *Config) { c.PacketSize = 64 })
	done := collect(context.Background(), s)

	conn, err := transport.Dial("127.0.0.1", s.LocalAddr().Port)
	require.NoError(t, err)
	defer conn.Close()

	good := append(header.Encode(header.Header{FrameID: 1, FragmentIndex: 1, FragmentCount: 1}), "ok"...)
	require.NoError(t, conn.Send([]byte{1, 2, 3}))
	require.NoError(t, conn.Send(make([]byte, 100)))
	require.NoError(t, conn.Send(good))
	require.NoError(t, conn.Send(nil))

	frames := <-done
	require.Equal(t, []Frame{{ID: 1, Payload: []byte("ok")}}, frames)
	stats := s.Stats()
	require.Equal(t, uint64(2), stats.Malformed)
	require.Equal(t, uint64(3), stats.Datagrams)
}

func TestStreamIdleTimeout(t *testing.T) {
	s := startStream(t, func(c *Config) { c.IdleTimeout = 100 * time.Millisecond })

	start := time.Now()
	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.Less(t, time.Since(start), 2*time.Second)

	// ended streams stay ended
	_, ok, err = s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamIdleClockIgnoresSlowConsumer(t *testing.T) {
	s := startStream(t, func(c *Config) { c.IdleTimeout = 300 * time.Millisecond })
	conn, err := transport.Dial("127.0.0.1", s.LocalAddr().Port)
	require.NoError(t, err)
	defer conn.Close()

	send := func(id uint32) {
		d := append(header.Encode(header.Header{FrameID: id, FragmentIndex: 1, FragmentCount: 1}), 'x')
		require.NoError(t, conn.Send(d))
	}

	send(1)
	frame, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1), frame.ID)

	// frame 2 waits in the socket while the consumer is busy past the timeout
	send(2)
	time.Sleep(400 * time.Millisecond)

	frame, ok, err = s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(2), frame.ID)

	_, ok, err = s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamStopsOnCancel(t *testing.T) {
	s := startStream(t, func(c *Config) { c.IdleTimeout = time.Minute })
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestStreamCloseUnblocksNext(t *testing.T) {
	s := startStream(t, func(c *Config) { c.IdleTimeout = time.Minute })
	time.AfterFunc(50*time.Millisecond, func() { _ = s.Close() })

	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, s.Close())
}

func TestFramesBreakClosesStream(t *testing.T) {
	s := startStream(t, nil)
	conn, err := transport.Dial("127.0.0.1", s.LocalAddr().Port)
	require.NoError(t, err)
	defer conn.Close()

	for id := uint32(1); id <= 2; id++ {
		d := append(header.Encode(header.Header{FrameID: id, FragmentIndex: 1, FragmentCount: 1}), 'x')
		require.NoError(t, conn.Send(d))
	}
	for range s.Frames(context.Background()) {
		break
	}
	require.True(t, s.closed.Load())

	_, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReceiveStreamValidates(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Address = "localhost"
	_, err := ReceiveStream(context.Background(), cfg)
	require.ErrorIs(t, err, validate.ErrInvalidAddress)

	cfg = DefaultConfig()
	cfg.Port = -1
	_, err = ReceiveStream(context.Background(), cfg)
	require.ErrorIs(t, err, validate.ErrInvalidPort)

	cfg = DefaultConfig()
	cfg.PacketSize = 65492
	_, err = ReceiveStream(context.Background(), cfg)
	require.ErrorIs(t, err, validate.ErrInvalidPacketSize)

	cfg = DefaultConfig()
	cfg.IdleTimeout = -time.Second
	_, err = ReceiveStream(context.Background(), cfg)
	require.Error(t, err)
}
