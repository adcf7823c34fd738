package sender

import (
	"time"

	"github.com/danmuck/udpstream/internal/protocol/header"
	"github.com/danmuck/udpstream/internal/validate"
	"github.com/rs/zerolog"
)

const (
	DefaultPacketSize = 1024
	DefaultPacing     = time.Millisecond
)

// Config describes one outbound stream.
type Config struct {
	Address string
	Port    int

	// PacketSize is the max datagram size, header included.
	PacketSize int

	// Pacing is the minimum gap between consecutive sends; zero disables it.
	Pacing time.Duration

	// Terminate sends a zero-byte datagram after the source is exhausted.
	Terminate bool

	// Logger defaults to the global zerolog logger when nil.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Address:    "127.0.0.1",
		Port:       12345,
		PacketSize: DefaultPacketSize,
		Pacing:     DefaultPacing,
	}
}

// FragmentPayload is the largest payload slice carried by one fragment.
func (c Config) FragmentPayload() int {
	return c.PacketSize - header.Size
}

func (c Config) Validate() error {
	return validate.Endpoint(c.Address, c.Port, c.PacketSize)
}
