package transport

import (
	"context"
	"net"

	"github.com/indigo-web/interceptor/config"
)

// Transport accepts connections on a single address and serves each of them in a separate
// goroutine.
type Transport interface {
	Bind(addr string) error
	Listen(cfg config.NET, cb func(conn net.Conn)) error
	Stop()
	// Shutdown waits until all the accepted connections are served. When the context is
	// done first, the remaining connections are closed forcibly.
	Shutdown(ctx context.Context) error
	Close()
}
