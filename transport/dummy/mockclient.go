package dummy

import (
	"io"
	"net"

	"github.com/indigo-web/interceptor/transport"
)

// Addr is the remote address every dummy client reports.
var Addr net.Addr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321}

var _ transport.Client = new(Client)

// Client returns the data it was initialised with piece by piece and reports io.EOF
// afterwards, unless set to loop the reads. It also tracks all the written data, making it thereby a universal mock
// suitable for most of the tests.
type Client struct {
	secure     bool
	closed     bool
	once       bool
	journaling bool
	pointer    int
	written    []byte
	data       [][]byte
}

func NewMockClient(data ...[]byte) *Client {
	return &Client{
		data:       data,
		once:       true,
		journaling: true,
	}
}

func (c *Client) Read() (data []byte, err error) {
	if c.closed {
		return nil, io.EOF
	}

	if c.pointer >= len(c.data) {
		if c.once {
			c.closed = true
			return nil, io.EOF
		}

		c.pointer = 0
	}

	piece := c.data[c.pointer]
	c.pointer++

	return piece, nil
}

func (c *Client) Write(p []byte) (int, error) {
	if c.journaling {
		c.written = append(c.written, p...)
	}

	return len(p), nil
}

func (c *Client) Conn() net.Conn {
	return new(Conn).Nop()
}

func (*Client) Remote() net.Addr {
	return Addr
}

func (c *Client) Secure() (secure, known bool) {
	return c.secure, true
}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

// TLS makes the client pretend the connection is encrypted.
func (c *Client) TLS() *Client {
	c.secure = true
	return c
}

// LoopReads makes the client start over once all the data was read.
func (c *Client) LoopReads() *Client {
	c.once = false
	return c
}

func (c *Client) Journaling(flag bool) *Client {
	c.journaling = flag
	return c
}

func (c *Client) Written() string {
	if !c.journaling {
		panic("mock client: cannot access written data: journaling is disabled!")
	}

	return string(c.written)
}
