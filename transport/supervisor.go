package transport

import (
	"context"
	"net"
	"time"

	"github.com/indigo-web/interceptor/config"
)

// Supervisor runs multiple transports at once. Whenever one of them dies, the rest are
// stopped as well.
type Supervisor struct {
	ts []boundTransport
}

func NewSupervisor() *Supervisor {
	return new(Supervisor)
}

// Add binds the transport to the address. If binding fails, every transport added before
// is closed.
func (s *Supervisor) Add(addr string, transport Transport, cb func(net.Conn)) error {
	if err := transport.Bind(addr); err != nil {
		s.close()
		return err
	}

	s.ts = append(s.ts, boundTransport{
		cb: cb,
		t:  transport,
	})

	return nil
}

// Run listens on all the transports until either the context is done or any of them
// returns. Live connections are given cfg.ShutdownTimeout to be served before they are
// closed forcibly.
func (s *Supervisor) Run(ctx context.Context, cfg config.NET) error {
	if len(s.ts) == 0 {
		return nil
	}

	errch := make(chan error, len(s.ts))

	for _, t := range s.ts {
		go func(t boundTransport) {
			errch <- t.t.Listen(cfg, t.cb)
		}(t)
	}

	var (
		err     error
		pending = len(s.ts)
	)

	select {
	case err = <-errch:
		pending--
	case <-ctx.Done():
	}

	for _, t := range s.ts {
		t.t.Stop()
	}

	drain(errch, pending)
	s.shutdown(cfg.ShutdownTimeout)

	return err
}

func (s *Supervisor) shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, t := range s.ts {
		_ = t.t.Shutdown(ctx)
		t.t.Close()
	}
}

func (s *Supervisor) close() {
	for _, t := range s.ts {
		t.t.Close()
	}
}

type boundTransport struct {
	cb func(conn net.Conn)
	t  Transport
}

func drain(ch <-chan error, n int) {
	for range n {
		<-ch
	}
}
