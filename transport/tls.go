package transport

import (
	"crypto/tls"
	"net"
)

// TLS terminates TLS on accepted connections. The handshake isn't performed by the
// listener, so the callback receives the connection in the state where its security is
// still unknown.
type TLS struct {
	config *tls.Config
	TCP
}

func NewTLS(config *tls.Config) *TLS {
	return &TLS{config: config}
}

func (t *TLS) Bind(addr string) error {
	tcp, err := bindTCP(addr)
	if err != nil {
		return err
	}

	t.TCP = newTCP(tlsListener{tcp, tls.NewListener(tcp, t.config)})

	return nil
}

// tlsListener keeps the deadline control of the raw listener, while accepting the
// wrapped connections.
type tlsListener struct {
	*net.TCPListener
	tls net.Listener
}

func (t tlsListener) Accept() (net.Conn, error) {
	return t.tls.Accept()
}

// Handshake completes the TLS handshake, if the connection is a TLS one, and returns the
// application protocol negotiated via ALPN. Plain connections report an empty protocol.
func Handshake(conn net.Conn) (protocol string, err error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", nil
	}

	if err = tlsConn.Handshake(); err != nil {
		return "", err
	}

	return tlsConn.ConnectionState().NegotiatedProtocol, nil
}
