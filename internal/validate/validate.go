package validate

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/danmuck/udpstream/internal/protocol/header"
	"github.com/danmuck/udpstream/internal/transport"
)

const (
	MinPort = 0
	MaxPort = 65535

	// MaxPacketSize leaves room for the header inside the IPv4 UDP ceiling.
	MaxPacketSize = transport.MaxDatagramSize - header.Size
)

var (
	ErrInvalidAddress    = errors.New("validate: invalid ipv4 address")
	ErrInvalidPort       = errors.New("validate: invalid port")
	ErrInvalidPacketSize = errors.New("validate: invalid packet size")
)

// Address accepts only dotted-quad IPv4 literals.
func Address(value string) error {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, value)
	}
	if !addr.Is4() || strings.Count(value, ".") != 3 {
		return fmt.Errorf("%w: %q is not ipv4", ErrInvalidAddress, value)
	}
	return nil
}

func Port(value int) error {
	if value < MinPort || value > MaxPort {
		return fmt.Errorf("%w: must be between %d and %d inclusive, got %d", ErrInvalidPort, MinPort, MaxPort, value)
	}
	return nil
}

// PacketSize checks a max datagram size: it must carry the header plus at
// least one payload byte and stay within MaxPacketSize.
func PacketSize(value int) error {
	if value <= header.Size || value > MaxPacketSize {
		return fmt.Errorf("%w: must be in (%d, %d], got %d", ErrInvalidPacketSize, header.Size, MaxPacketSize, value)
	}
	return nil
}

// Endpoint runs all three checks and reports the first failure.
func Endpoint(address string, port, packetSize int) error {
	if err := Address(address); err != nil {
		return err
	}
	if err := Port(port); err != nil {
		return err
	}
	return PacketSize(packetSize)
}
