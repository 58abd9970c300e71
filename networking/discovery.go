package networking

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"pico_command_center/constants"
	"pico_command_center/logging"
)

// Listener owns the UDP socket used for the one-time handshake rendezvous.
// The socket is released as soon as a handshake matches or Close is called.
type Listener struct {
	conn      net.PacketConn
	ipv4Conn  *ipv4.PacketConn
	local     net.Addr
	handshake string
	log       *zap.Logger
}

// Listen binds the discovery socket and enables broadcast reception
func Listen(ctx context.Context, address string, port int, handshake string, log *zap.Logger) (*Listener, error) {
	log = logging.OrNop(log)
	addr := net.JoinHostPort(address, strconv.Itoa(port))

	lc := net.ListenConfig{Control: BroadcastControl}
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %w", ErrDiscoveryBind, addr, err)
	}

	ipv4Conn := ipv4.NewPacketConn(conn)
	// Control messages are informational only.
	if err := ipv4Conn.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
		log.Debug("control messages unavailable", zap.Error(err))
	}

	log.Info("discovery socket ready", zap.String("address", conn.LocalAddr().String()))

	return &Listener{
		conn:      conn,
		ipv4Conn:  ipv4Conn,
		local:     conn.LocalAddr(),
		handshake: handshake,
		log:       log,
	}, nil
}

// Addr returns the bound local address
func (l *Listener) Addr() net.Addr {
	return l.local
}

// Wait blocks until a datagram equal to the handshake (after trimming whitespace)
// arrives and returns the address of its sender. Everything else is ignored.
// The socket is closed before Wait returns, whatever the outcome.
func (l *Listener) Wait(ctx context.Context) (net.IP, error) {
	conn := l.conn
	if conn == nil {
		return nil, fmt.Errorf("%w: listener closed", ErrConnectionFault)
	}
	defer l.Close()

	// Unblock the pending read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buffer := make([]byte, constants.DISCOVERY_READ_BUFFER)
	for {
		n, cm, src, err := l.ipv4Conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("discovery aborted: %w", ctx.Err())
			}
			return nil, fmt.Errorf("%w: %w", ErrConnectionFault, err)
		}

		if strings.TrimSpace(string(buffer[:n])) != l.handshake {
			l.log.Debug("ignoring datagram", zap.Stringer("from", src), zap.Int("len", n))
			continue
		}

		udp, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}
		fields := []zap.Field{zap.Stringer("from", udp)}
		if cm != nil {
			fields = append(fields, zap.Int("ifindex", cm.IfIndex), zap.Stringer("dst", cm.Dst))
		}
		l.log.Info("handshake received", fields...)

		return udp.IP, nil
	}
}

// Close releases the discovery socket
func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// Discover binds the discovery socket, waits for the device handshake and returns
// the device address. With no deadline on ctx it waits indefinitely.
func Discover(ctx context.Context, address string, port int, handshake string, log *zap.Logger) (net.IP, error) {
	l, err := Listen(ctx, address, port, handshake, log)
	if err != nil {
		return nil, err
	}
	return l.Wait(ctx)
}

// BroadcastControl is a net.ListenConfig Control hook enabling broadcast on the socket
func BroadcastControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = setSocketOptions(fd)
	})
	if err != nil {
		return err
	}
	return serr
}
