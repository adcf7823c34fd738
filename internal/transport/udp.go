package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// MaxDatagramSize is the IPv4 UDP payload ceiling:
// 65535 - 8 byte UDP header - 20 byte IP header.
const MaxDatagramSize = 65507

var (
	ErrTimeout = errors.New("transport: receive timed out")
	ErrClosed  = errors.New("transport: socket closed")
)

// Endpoint is an IPv4 host/port pair.
type Endpoint struct {
	Address string
	Port    int
}

func NewEndpoint(address string, port int) Endpoint {
	return Endpoint{Address: address, Port: port}
}

// String returns "ip:port" suitable for net.ResolveUDPAddr.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

func (e Endpoint) Resolve() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", e.String())
}

// Sender owns an unconnected socket that writes every datagram to one fixed
// destination. There is no connection state and no retry.
type Sender struct {
	conn *net.UDPConn
	dst  *net.UDPAddr
}

func Dial(address string, port int) (*Sender, error) {
	dst, err := NewEndpoint(address, port).Resolve()
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s:%d: %w", address, port, err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("transport: open send socket: %w", err)
	}
	return &Sender{conn: conn, dst: dst}, nil
}

// Send writes b as exactly one datagram.
func (s *Sender) Send(b []byte) error {
	if len(b) > MaxDatagramSize {
		return fmt.Errorf("transport: datagram of %d bytes exceeds %d", len(b), MaxDatagramSize)
	}
	n, err := s.conn.WriteToUDP(b, s.dst)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	if n != len(b) {
		return fmt.Errorf("transport: short write %d/%d", n, len(b))
	}
	return nil
}

func (s *Sender) Destination() *net.UDPAddr {
	return s.dst
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// Listener is a bound socket that yields one datagram per Recv call.
type Listener struct {
	conn *net.UDPConn
}

func Listen(address string, port int) (*Listener, error) {
	laddr, err := NewEndpoint(address, port).Resolve()
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s:%d: %w", address, port, err)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: bind %s: %w", laddr, err)
	}
	return &Listener{conn: conn}, nil
}

// Recv reads one datagram into buf, waiting until deadline. A zero deadline
// blocks indefinitely. Expiry is reported as ErrTimeout.
func (l *Listener) Recv(buf []byte, deadline time.Time) (int, error) {
	if err := l.conn.SetReadDeadline(deadline); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, fmt.Errorf("transport: set read deadline: %w", err)
	}
	n, _, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, ErrTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, ErrTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, err
	}
	return n, nil
}

func (l *Listener) LocalAddr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

func (l *Listener) Close() error {
	return l.conn.Close()
}
