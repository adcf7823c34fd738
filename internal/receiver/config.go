package receiver

import (
	"fmt"
	"time"

	"github.com/danmuck/udpstream/internal/validate"
	"github.com/rs/zerolog"
)

const (
	DefaultPacketSize  = 1024
	DefaultIdleTimeout = 10 * time.Second
)

// Config describes one inbound stream.
type Config struct {
	Address string
	Port    int

	// PacketSize is the largest datagram accepted, header included. It must
	// match or exceed the sender's PacketSize.
	PacketSize int

	// IdleTimeout ends the stream after this long without any datagram.
	IdleTimeout time.Duration

	Slots        int
	MaxFragments int

	// Logger defaults to the global zerolog logger when nil.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Address:      "0.0.0.0",
		Port:         12345,
		PacketSize:   DefaultPacketSize,
		IdleTimeout:  DefaultIdleTimeout,
		Slots:        DefaultSlots,
		MaxFragments: DefaultMaxFragments,
	}
}

func (c Config) Validate() error {
	if err := validate.Endpoint(c.Address, c.Port, c.PacketSize); err != nil {
		return err
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("receiver: idle timeout must not be negative, got %s", c.IdleTimeout)
	}
	return nil
}
