package dummy

import (
	"io"
	"net"
	"time"
)

// Conn is a connection with nothing to read. Written data is kept unless the connection
// is made nop.
type Conn struct {
	Written []byte
	nop     bool
}

func (c *Conn) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (c *Conn) Write(b []byte) (int, error) {
	if !c.nop {
		c.Written = append(c.Written, b...)
	}

	return len(b), nil
}

func (c *Conn) Close() error {
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return Addr
}

func (c *Conn) RemoteAddr() net.Addr {
	return Addr
}

func (c *Conn) SetDeadline(time.Time) error {
	return nil
}

func (c *Conn) SetReadDeadline(time.Time) error {
	return nil
}

func (c *Conn) SetWriteDeadline(time.Time) error {
	return nil
}

func (c *Conn) Nop() *Conn {
	c.nop = true
	return c
}
