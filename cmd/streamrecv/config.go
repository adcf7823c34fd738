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
	Address      string   `toml:"address"`
	Port         int      `toml:"port"`
	PacketSize   int      `toml:"packet_size"`
	IdleTimeout  string   `toml:"idle_timeout"`
	Slots        int      `toml:"slots"`
	MaxFragments int      `toml:"max_fragments"`
	AdminAddr    string   `toml:"admin_addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	Sink         struct {
		Kind string `toml:"kind"`
		Dir  string `toml:"dir"`
	} `toml:"sink"`
}

type flagValues struct {
	config       string
	address      string
	port         int
	packetSize   int
	idleTimeout  string
	slots        int
	maxFragments int
	admin        string
	sink         string
	out          string
}

func newFlagSet() (*flag.FlagSet, *flagValues) {
	v := &flagValues{}
	fs := flag.NewFlagSet("streamrecv", flag.ContinueOnError)
	fs.StringVar(&v.config, "config", "", "receiver config file (.toml, .yaml, .yml)")
	fs.StringVar(&v.address, "addr", "", "IPv4 address to bind")
	fs.IntVar(&v.port, "port", 0, "UDP port to bind")
	fs.IntVar(&v.packetSize, "packet-size", 0, "largest datagram accepted, header included")
	fs.StringVar(&v.idleTimeout, "idle-timeout", "", "end the stream after this long without datagrams")
	fs.IntVar(&v.slots, "slots", 0, "frames that may be in flight at once")
	fs.IntVar(&v.maxFragments, "max-fragments", 0, "largest fragment_count accepted")
	fs.StringVar(&v.admin, "admin", "", "admin HTTP listen address (empty disables)")
	fs.StringVar(&v.sink, "sink", "", "frame sink: dir|discard")
	fs.StringVar(&v.out, "out", "", "output directory for the dir sink")
	return fs, v
}

// resolveConfig layers defaults, the config file, and explicitly set flags,
// in that order, and validates the result.
func resolveConfig(fs *flag.FlagSet, v *flagValues) (config.ReceiverConfig, error) {
	cfg := config.DefaultReceiverConfig()
	if strings.TrimSpace(v.config) != "" {
		loaded, err := loadFileConfig(v.config)
		if err != nil {
			return config.ReceiverConfig{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Address = strings.TrimSpace(v.address)
		case "port":
			cfg.Port = v.port
		case "packet-size":
			cfg.PacketSize = v.packetSize
		case "idle-timeout":
			cfg.IdleTimeout = strings.TrimSpace(v.idleTimeout)
		case "slots":
			cfg.Slots = v.slots
		case "max-fragments":
			cfg.MaxFragments = v.maxFragments
		case "admin":
			cfg.AdminAddr = strings.TrimSpace(v.admin)
		case "out":
			// -out implies the dir sink unless -sink says otherwise
			cfg.Sink.Dir = strings.TrimSpace(v.out)
			cfg.Sink.Kind = config.SinkDir
		case "sink":
			cfg.Sink.Kind = config.NormalizeKind(v.sink)
		}
	})
	if err := config.ValidateReceiverConfig(cfg); err != nil {
		return config.ReceiverConfig{}, err
	}
	return cfg, nil
}

// loadFileConfig overlays only the keys present in the file onto the
// defaults; YAML files go through the shared loader.
func loadFileConfig(path string) (config.ReceiverConfig, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return config.LoadReceiverConfig(path)
	}

	cfg := config.DefaultReceiverConfig()
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.ReceiverConfig{}, fmt.Errorf("load receiver config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config.ReceiverConfig{}, fmt.Errorf("load receiver config: unknown key %q", undecoded[0].String())
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
	if meta.IsDefined("idle_timeout") {
		cfg.IdleTimeout = strings.TrimSpace(raw.IdleTimeout)
	}
	if meta.IsDefined("slots") {
		cfg.Slots = raw.Slots
	}
	if meta.IsDefined("max_fragments") {
		cfg.MaxFragments = raw.MaxFragments
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("sink", "kind") {
		cfg.Sink.Kind = config.NormalizeKind(raw.Sink.Kind)
	}
	if meta.IsDefined("sink", "dir") {
		cfg.Sink.Dir = strings.TrimSpace(raw.Sink.Dir)
	}
	return cfg, nil
}
