package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/udpstream/internal/admin"
	"github.com/danmuck/udpstream/internal/config"
	"github.com/danmuck/udpstream/internal/observability"
	"github.com/danmuck/udpstream/internal/receiver"
	"github.com/danmuck/udpstream/internal/sink"
	"github.com/rs/zerolog/log"
)

func main() {
	fs, values := newFlagSet()
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	observability.InitLogger("streamrecv")
	cfg, err := resolveConfig(fs, values)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid receiver config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		log.Fatal().Err(err).Msg("receiver stopped")
	}
}

func run(ctx context.Context, cfg config.ReceiverConfig) error {
	streamCfg, err := cfg.Runtime()
	if err != nil {
		return err
	}
	out, err := buildSink(cfg.Sink)
	if err != nil {
		return err
	}
	stream, err := receiver.ReceiveStream(ctx, streamCfg)
	if err != nil {
		return err
	}
	defer stream.Close()

	adminDone := make(chan error, 1)
	adminCtx, stopAdmin := context.WithCancel(ctx)
	defer stopAdmin()
	if cfg.AdminAddr != "" {
		srv := admin.Appear("receiver", "streamrecv", cfg.AdminAddr, cfg.CorsOrigins)
		srv.SetStats(func() any { return stream.Stats() })
		srv.SetReady(true)
		go func() { adminDone <- srv.Serve(adminCtx) }()
	} else {
		adminDone <- nil
	}

	frames, consumeErr := consume(ctx, stream, out)
	stopAdmin()
	if err := <-adminDone; err != nil {
		log.Error().Err(err).Msg("admin server failed")
	}

	stats := stream.Stats()
	fmt.Fprintf(os.Stderr, "streamrecv: %d frames, %d datagrams, %d malformed, %d stale, %d evicted\n",
		frames, stats.Datagrams, stats.Malformed, stats.Stale, stats.Evicted)
	return consumeErr
}

// consume drains stream into out until the stream ends or out fails.
func consume(ctx context.Context, stream *receiver.Stream, out sink.Sink) (int, error) {
	var n int
	for frame := range stream.Frames(ctx) {
		if err := out.Write(frame); err != nil {
			return n, err
		}
		n++
	}
	return n, stream.Err()
}

func buildSink(cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Kind {
	case config.SinkDir:
		return sink.NewDir(cfg.Dir)
	case config.SinkDiscard:
		return &sink.Discard{}, nil
	default:
		return nil, fmt.Errorf("unknown sink kind: %s", cfg.Kind)
	}
}
