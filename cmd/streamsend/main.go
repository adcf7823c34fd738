package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/udpstream/internal/config"
	"github.com/danmuck/udpstream/internal/observability"
	"github.com/danmuck/udpstream/internal/sender"
	"github.com/danmuck/udpstream/internal/source"
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

	observability.InitLogger("streamsend")
	cfg, err := resolveConfig(fs, values)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sender config")
	}
	streamCfg, err := cfg.Runtime()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid sender config")
	}
	src, err := buildSource(cfg.Source)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := sender.SendStream(ctx, src, streamCfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatal().Err(err).Msg("stream aborted")
	}
	fmt.Fprintf(os.Stderr, "streamsend: %d frames, %d fragments, %d bytes\n", stats.Frames, stats.Fragments, stats.Bytes)
}

func buildSource(cfg config.SourceConfig) (sender.Source, error) {
	switch cfg.Kind {
	case config.SourceFiles:
		return source.Files(cfg.Tag, cfg.Paths...), nil
	case config.SourceStdin:
		return source.Chunks(cfg.Tag, os.Stdin, cfg.ChunkSize)
	case config.SourceSynthetic:
		return source.Synthetic(cfg.Tag, cfg.Count, cfg.FrameSize), nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", cfg.Kind)
	}
}
