package transport

import (
	"crypto/tls"
	"net"
	"time"
)

type Client interface {
	Read() ([]byte, error)
	Write([]byte) (int, error)
	Conn() net.Conn
	Remote() net.Addr
	// Secure reports whether the connection is encrypted. Known is false while the TLS
	// handshake is in progress or when the connection is missing at all.
	Secure() (secure, known bool)
	Close() error
}

type client struct {
	conn    net.Conn
	buff    []byte
	timeout time.Duration
}

func NewClient(conn net.Conn, timeout time.Duration, buff []byte) Client {
	return &client{
		buff:    buff,
		conn:    conn,
		timeout: timeout,
	}
}

// Read reads data into the internal buffer and returns a piece of it back. Timeouts are also
// handled automatically.
func (c *client) Read() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	n, err := c.conn.Read(c.buff)
	return c.buff[:n], err
}

// Conn unwraps the underlying net.Conn.
func (c *client) Conn() net.Conn {
	return c.conn
}

// Write writes data into the underlying connection.
func (c *client) Write(b []byte) (int, error) {
	return c.conn.Write(b)
}

// Remote returns the remote address of the connection.
func (c *client) Remote() net.Addr {
	if c.conn == nil {
		return nil
	}

	return c.conn.RemoteAddr()
}

func (c *client) Secure() (secure, known bool) {
	return IsSecure(c.conn)
}

// Close closes the connection.
func (c *client) Close() error {
	return c.conn.Close()
}

// IsSecure tells whether the connection went through the TLS handshake.
func IsSecure(conn net.Conn) (secure, known bool) {
	switch conn := conn.(type) {
	case nil:
		return false, false
	case *tls.Conn:
		if !conn.ConnectionState().HandshakeComplete {
			return false, false
		}

		return true, true
	default:
		return false, true
	}
}
