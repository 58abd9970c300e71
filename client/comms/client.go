package comms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"pico_command_center/logging"
	"pico_command_center/networking"
)

// Client owns the TCP connection of one transfer session
type Client struct {
	socket net.Conn
	log    *zap.Logger
}

// NewClient returns unconnected client
func NewClient(log *zap.Logger) *Client {
	return &Client{log: logging.OrNop(log)}
}

// Connect opens TCP connection to target device address
func (c *Client) Connect(ctx context.Context, address string, dscp int) error {
	dial := new(net.Dialer)
	// Connect to device.
	conn, err := dial.DialContext(ctx, "tcp", address)
	if err != nil {
		return &networking.SessionError{
			Operation: "connect",
			Err:       networking.ErrConnectionFault,
			Details:   err.Error(),
		}
	}
	c.socket = conn
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Set TCP_NODELAY to always immediately send.
		tcp.SetNoDelay(true)
	}
	if dscp > 0 {
		// DSCP lives in the upper 6 bits of TOS. NOTE: Windows ignores it by default.
		if err := ipv4.NewConn(conn).SetTOS(dscp << 2); err != nil {
			c.log.Debug("could not set DSCP", zap.Error(err))
		}
	}
	c.log.Debug("connected", zap.String("address", address))
	return nil
}

// Use adopts an already established connection
func (c *Client) Use(conn net.Conn) {
	c.socket = conn
}

// Run drives machine over the connection until it reaches a terminal state.
// Frames arriving back to back in one read are applied in order.
func (c *Client) Run(ctx context.Context, m *Machine) error {
	if c.socket == nil {
		return errors.New("not connected")
	}

	request, err := m.Request()
	if err != nil {
		return err
	}
	if err := c.write(m, request); err != nil {
		return err
	}
	if m.Done() {
		// Fire and forget.
		return nil
	}

	socket := c.socket
	stop := context.AfterFunc(ctx, func() {
		socket.SetReadDeadline(time.Now())
	})
	defer stop()

	var buffer []byte
	read := make([]byte, 4096)
	for {
		n, rerr := socket.Read(read)
		if n > 0 {
			buffer = append(buffer, read[:n]...)
			for {
				frame, valid, rest, ok := networking.NextFrame(buffer)
				if !ok {
					break
				}
				buffer = rest

				out, herr := m.Handle(frame, valid)
				if len(out) > 0 {
					if err := c.write(m, out); err != nil {
						return err
					}
				}
				if herr != nil {
					return herr
				}
				if m.Done() {
					return nil
				}
			}
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s aborted: %w", m.cmd.Name, ctx.Err())
			}
			details := rerr.Error()
			if errors.Is(rerr, io.EOF) {
				details = "connection closed by device"
			}
			return &networking.SessionError{
				Operation: m.cmd.Name,
				State:     m.State().String(),
				Err:       networking.ErrConnectionFault,
				Details:   details,
			}
		}
	}
}

func (c *Client) write(m *Machine, data []byte) error {
	if _, err := c.socket.Write(data); err != nil {
		return m.WriteFailed(err.Error())
	}
	return nil
}

// Close closes socket
func (c *Client) Close() error {
	if c.socket == nil {
		return nil
	}
	err := c.socket.Close()
	c.socket = nil
	return err
}
