package main

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/udpstream/internal/config"
)

type fileConfig struct {
	Address    string `toml:"address"`
	Port       int    `toml:"port"`
	PacketSize int    `toml:"packet_size"`
	Pacing     string `toml:"pacing"`
	Terminate  bool   `toml:"terminate"`
	Source     struct {
		Kind      string   `toml:"kind"`
		Tag       uint32   `toml:"tag"`
		Paths     []string `toml:"paths"`
		ChunkSize int      `toml:"chunk_size"`
		Count     int      `toml:"count"`
		FrameSize int      `toml:"frame_size"`
	} `toml:"source"`
}

type flagValues struct {
	config     string
	address    string
	port       int
	packetSize int
	pacing     string
	terminate  bool
	source     string
	tag        uint
	count      int
	frameSize  int
	chunkSize  int
}

func newFlagSet() (*flag.FlagSet, *flagValues) {
	v := &flagValues{}
	fs := flag.NewFlagSet("streamsend", flag.ContinueOnError)
	fs.StringVar(&v.config, "config", "", "sender config file (.toml, .yaml, .yml)")
	fs.StringVar(&v.address, "addr", "", "destination IPv4 address")
	fs.IntVar(&v.port, "port", 0, "destination UDP port")
	fs.IntVar(&v.packetSize, "packet-size", 0, "max datagram size in bytes, header included")
	fs.StringVar(&v.pacing, "pacing", "", "minimum gap between datagrams (e.g. 1ms, 0 to disable)")
	fs.BoolVar(&v.terminate, "terminate", false, "send a zero-byte end-of-stream datagram when done")
	fs.StringVar(&v.source, "source", "", "frame source: synthetic|files|stdin")
	fs.UintVar(&v.tag, "tag", 0, "tag copied into every fragment")
	fs.IntVar(&v.count, "count", 0, "synthetic frame count (0 runs until interrupted)")
	fs.IntVar(&v.frameSize, "frame-size", 0, "synthetic frame size in bytes")
	fs.IntVar(&v.chunkSize, "chunk-size", 0, "stdin frame size in bytes")
	return fs, v
}

// resolveConfig layers defaults, the config file, and explicitly set flags,
// in that order, and validates the result.
func resolveConfig(fs *flag.FlagSet, v *flagValues) (config.SenderConfig, error) {
	cfg := config.DefaultSenderConfig()
	if strings.TrimSpace(v.config) != "" {
		loaded, err := loadFileConfig(v.config)
		if err != nil {
			return config.SenderConfig{}, err
		}
		cfg = loaded
	}

	var tagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Address = strings.TrimSpace(v.address)
		case "port":
			cfg.Port = v.port
		case "packet-size":
			cfg.PacketSize = v.packetSize
		case "pacing":
			cfg.Pacing = strings.TrimSpace(v.pacing)
		case "terminate":
			cfg.Terminate = v.terminate
		case "source":
			cfg.Source.Kind = config.NormalizeKind(v.source)
		case "tag":
			if uint64(v.tag) > 0xFFFFFFFF {
				tagErr = fmt.Errorf("tag %d does not fit in 32 bits", v.tag)
			}
			cfg.Source.Tag = uint32(v.tag)
		case "count":
			cfg.Source.Count = v.count
		case "frame-size":
			cfg.Source.FrameSize = v.frameSize
		case "chunk-size":
			cfg.Source.ChunkSize = v.chunkSize
		}
	})
	if tagErr != nil {
		return config.SenderConfig{}, tagErr
	}
	if cfg.Source.Kind == config.SourceFiles && len(cfg.Source.Paths) == 0 {
		cfg.Source.Paths = fs.Args()
	}
	if err := config.ValidateSenderConfig(cfg); err != nil {
		return config.SenderConfig{}, err
	}
	return cfg, nil
}

// loadFileConfig overlays only the keys present in the file onto the
// defaults; YAML files go through the shared loader.
func loadFileConfig(path string) (config.SenderConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.LoadSenderConfig(path)
	}

	cfg := config.DefaultSenderConfig()
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.SenderConfig{}, fmt.Errorf("load sender config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.SenderConfig{}, fmt.Errorf("load sender config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("packet_size") {
		cfg.PacketSize = raw.PacketSize
	}
	if meta.IsDefined("pacing") {
		cfg.Pacing = strings.TrimSpace(raw.Pacing)
	}
	if meta.IsDefined("terminate") {
		cfg.Terminate = raw.Terminate
	}
	if meta.IsDefined("source", "kind") {
		cfg.Source.Kind = config.NormalizeKind(raw.Source.Kind)
	}
	if meta.IsDefined("source", "tag") {
		cfg.Source.Tag = raw.Source.Tag
	}
	if meta.IsDefined("source", "paths") {
		cfg.Source.Paths = normalizePaths(raw.Source.Paths)
	}
	if meta.IsDefined("source", "chunk_size") {
		cfg.Source.ChunkSize = raw.Source.ChunkSize
	}
	if meta.IsDefined("source", "count") {
		cfg.Source.Count = raw.Source.Count
	}
	if meta.IsDefined("source", "frame_size") {
		cfg.Source.FrameSize = raw.Source.FrameSize
	}
	return cfg, nil
}

func normalizePaths(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
