package link

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"groundlink.klederson.com/internal/fault"
)

// Client is a receive-only connection to the engine's Unix socket. Reads never
// block: a read with nothing waiting reports NoData immediately.
type Client struct {
	path string
	buf  []byte
	conn *net.UnixConn
}

// NewClient creates a client for the socket at path.
func NewClient(path string, bufSize int) *Client {
	return &Client{path: path, buf: make([]byte, bufSize)}
}

// Path returns the socket path.
func (c *Client) Path() string { return c.path }

// Connected reports whether the client holds an open connection.
func (c *Client) Connected() bool { return c.conn != nil }

// Connect dials the socket. A missing socket file is reported as
// fault.ErrSocketMissing so callers can tell "engine not started" apart from
// other failures. Errors the engine cannot fix by starting up, such as a
// permission or path problem, are classified fatal.
func (c *Client) Connect() error {
	if c.conn != nil {
		return nil
	}
	if _, err := os.Stat(c.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fault.WrapTransient(fmt.Errorf("%w: %s", fault.ErrSocketMissing, c.path), "Client", "Connect")
		}
		return classifyConnect(err)
	}
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: c.path, Net: "unix"})
	if err != nil {
		return classifyConnect(err)
	}
	c.conn = conn
	return nil
}

func classifyConnect(err error) error {
	if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOTDIR) {
		return fault.WrapFatal(err, "Client", "Connect")
	}
	return fault.WrapTransient(err, "Client", "Connect")
}

// Read performs one non-blocking read and returns the raw bytes. The slice is
// only valid until the next call.
func (c *Client) Read() (Outcome, []byte, error) {
	if c.conn == nil {
		return Disconnected, nil, fault.ErrNotConnected
	}
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return Disconnected, nil, err
	}

	var (
		n    int
		rerr error
	)
	err = raw.Read(func(fd uintptr) bool {
		n, rerr = unix.Read(int(fd), c.buf)
		return true
	})
	if err != nil {
		return Disconnected, nil, err
	}

	switch {
	case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EINTR):
		return NoData, nil, nil
	case rerr != nil:
		return Disconnected, nil, fmt.Errorf("read %s: %w", c.path, rerr)
	case n == 0:
		return Disconnected, nil, fault.ErrDisconnected
	}
	return Frame, c.buf[:n], nil
}

// Close drops the connection. Safe to call when not connected.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
