package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/udpstream/internal/receiver"
	"github.com/danmuck/udpstream/internal/sender"
	"github.com/danmuck/udpstream/internal/validate"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Source kinds understood by streamsend.
const (
	SourceSynthetic = "synthetic"
	SourceFiles     = "files"
	SourceStdin     = "stdin"
)

// Sink kinds understood by streamrecv.
const (
	SinkDir     = "dir"
	SinkDiscard = "discard"
)

type SenderConfig struct {
	Address    string       `toml:"address" yaml:"address"`
	Port       int          `toml:"port" yaml:"port"`
	PacketSize int          `toml:"packet_size" yaml:"packet_size"`
	Pacing     string       `toml:"pacing" yaml:"pacing"`
	Terminate  bool         `toml:"terminate" yaml:"terminate"`
	Source     SourceConfig `toml:"source" yaml:"source"`
}

type SourceConfig struct {
	Kind      string   `toml:"kind" yaml:"kind"`
	Tag       uint32   `toml:"tag" yaml:"tag"`
	Paths     []string `toml:"paths" yaml:"paths"`
	ChunkSize int      `toml:"chunk_size" yaml:"chunk_size"`
	Count     int      `toml:"count" yaml:"count"`
	FrameSize int      `toml:"frame_size" yaml:"frame_size"`
}

type ReceiverConfig struct {
	Address      string     `toml:"address" yaml:"address"`
	Port         int        `toml:"port" yaml:"port"`
	PacketSize   int        `toml:"packet_size" yaml:"packet_size"`
	IdleTimeout  string     `toml:"idle_timeout" yaml:"idle_timeout"`
	Slots        int        `toml:"slots" yaml:"slots"`
	MaxFragments int        `toml:"max_fragments" yaml:"max_fragments"`
	AdminAddr    string     `toml:"admin_addr" yaml:"admin_addr"`
	CorsOrigins  []string   `toml:"cors_origins" yaml:"cors_origins"`
	Sink         SinkConfig `toml:"sink" yaml:"sink"`
}

type SinkConfig struct {
	Kind string `toml:"kind" yaml:"kind"`
	Dir  string `toml:"dir" yaml:"dir"`
}

// LoadSenderConfig decodes path over DefaultSenderConfig, so keys absent
// from the file keep their defaults and explicit zero values are kept.
func LoadSenderConfig(path string) (SenderConfig, error) {
	cfg := DefaultSenderConfig()
	if err := load(path, &cfg); err != nil {
		return SenderConfig{}, err
	}
	cfg.Source.Kind = NormalizeKind(cfg.Source.Kind)
	if err := ValidateSenderConfig(cfg); err != nil {
		return SenderConfig{}, err
	}
	return cfg, nil
}

func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	cfg := DefaultReceiverConfig()
	if err := load(path, &cfg); err != nil {
		return ReceiverConfig{}, err
	}
	cfg.Sink.Kind = NormalizeKind(cfg.Sink.Kind)
	if err := ValidateReceiverConfig(cfg); err != nil {
		return ReceiverConfig{}, err
	}
	return cfg, nil
}

// load picks the decoder by extension; anything other than .yaml/.yml is
// read as TOML.
func load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, out)
	default:
		err = toml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func DefaultSenderConfig() SenderConfig {
	def := sender.DefaultConfig()
	return SenderConfig{
		Address:    def.Address,
		Port:       def.Port,
		PacketSize: def.PacketSize,
		Pacing:     def.Pacing.String(),
		Source: SourceConfig{
			Kind:      SourceSynthetic,
			ChunkSize: 64 * 1024,
			FrameSize: 100000,
		},
	}
}

func DefaultReceiverConfig() ReceiverConfig {
	def := receiver.DefaultConfig()
	return ReceiverConfig{
		Address:      def.Address,
		Port:         def.Port,
		PacketSize:   def.PacketSize,
		IdleTimeout:  def.IdleTimeout.String(),
		Slots:        def.Slots,
		MaxFragments: def.MaxFragments,
		Sink:         SinkConfig{Kind: SinkDiscard},
	}
}

// NormalizeKind lowercases and trims a source or sink kind.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

func ValidateSenderConfig(cfg SenderConfig) error {
	if err := validate.Endpoint(cfg.Address, cfg.Port, cfg.PacketSize); err != nil {
		return fmt.Errorf("sender config invalid: %w", err)
	}
	if _, err := parseDuration("pacing", cfg.Pacing); err != nil {
		return err
	}
	switch NormalizeKind(cfg.Source.Kind) {
	case SourceSynthetic:
		if cfg.Source.FrameSize < 0 {
			return fmt.Errorf("source frame_size must not be negative")
		}
	case SourceFiles:
		if len(cfg.Source.Paths) == 0 {
			return fmt.Errorf("source paths required for kind %q", SourceFiles)
		}
	case SourceStdin:
		if cfg.Source.ChunkSize <= 0 {
			return fmt.Errorf("source chunk_size must be positive")
		}
	default:
		return fmt.Errorf("unknown source kind: %s", cfg.Source.Kind)
	}
	return nil
}

func ValidateReceiverConfig(cfg ReceiverConfig) error {
	if err := validate.Endpoint(cfg.Address, cfg.Port, cfg.PacketSize); err != nil {
		return fmt.Errorf("receiver config invalid: %w", err)
	}
	d, err := parseDuration("idle_timeout", cfg.IdleTimeout)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if cfg.Slots < 0 {
		return fmt.Errorf("slots must not be negative")
	}
	if cfg.MaxFragments < 0 {
		return fmt.Errorf("max_fragments must not be negative")
	}
	switch NormalizeKind(cfg.Sink.Kind) {
	case SinkDiscard:
	case SinkDir:
		if strings.TrimSpace(cfg.Sink.Dir) == "" {
			return fmt.Errorf("sink dir required for kind %q", SinkDir)
		}
	default:
		return fmt.Errorf("unknown sink kind: %s", cfg.Sink.Kind)
	}
	return nil
}

// Runtime converts the file schema into the stream config. cfg is expected
// to have passed ValidateSenderConfig.
func (cfg SenderConfig) Runtime() (sender.Config, error) {
	pacing, err := parseDuration("pacing", cfg.Pacing)
	if err != nil {
		return sender.Config{}, err
	}
	return sender.Config{
		Address:    cfg.Address,
		Port:       cfg.Port,
		PacketSize: cfg.PacketSize,
		Pacing:     pacing,
		Terminate:  cfg.Terminate,
	}, nil
}

func (cfg ReceiverConfig) Runtime() (receiver.Config, error) {
	idle, err := parseDuration("idle_timeout", cfg.IdleTimeout)
	if err != nil {
		return receiver.Config{}, err
	}
	return receiver.Config{
		Address:      cfg.Address,
		Port:         cfg.Port,
		PacketSize:   cfg.PacketSize,
		IdleTimeout:  idle,
		Slots:        cfg.Slots,
		MaxFragments: cfg.MaxFragments,
	}, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}
