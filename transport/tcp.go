package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/interceptor/config"
)

type listener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

type TCP struct {
	l     listener
	wg    *sync.WaitGroup
	stop  *atomic.Bool
	mu    *sync.Mutex
	conns map[net.Conn]struct{}
}

func NewTCP() *TCP {
	tcp := newTCP(nil)
	return &tcp
}

func newTCP(l listener) TCP {
	return TCP{
		l:     l,
		wg:    new(sync.WaitGroup),
		stop:  new(atomic.Bool),
		mu:    new(sync.Mutex),
		conns: make(map[net.Conn]struct{}),
	}
}

func bindTCP(addr string) (*net.TCPListener, error) {
	tcpaddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	return net.ListenTCP("tcp", tcpaddr)
}

func (t *TCP) Bind(addr string) (err error) {
	t.l, err = bindTCP(addr)
	return err
}

// Addr returns the address the transport is bound to.
func (t *TCP) Addr() net.Addr {
	return t.l.Addr()
}

// Listen accepts connections until stopped. The deadline makes Accept return periodically,
// so the stop flag is noticed in time.
func (t *TCP) Listen(cfg config.NET, cb func(conn net.Conn)) error {
	for !t.stop.Load() {
		err := t.l.SetDeadline(time.Now().Add(cfg.AcceptLoopInterruptPeriod))
		if err != nil {
			return err
		}

		conn, err := t.l.Accept()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}

			return err
		}

		t.track(conn)
		t.wg.Add(1)
		go func(conn net.Conn) {
			defer t.wg.Done()
			defer t.untrack(conn)

			cb(conn)
			_ = conn.Close()
		}(conn)
	}

	return nil
}

// Live returns the number of connections being currently served.
func (t *TCP) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.conns)
}

func (t *TCP) track(conn net.Conn) {
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()
}

func (t *TCP) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}

func (t *TCP) Stop() {
	t.stop.Store(true)
}

func (t *TCP) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	for conn := range t.conns {
		_ = conn.Close()
	}
	t.mu.Unlock()

	<-done

	return ctx.Err()
}

func (t *TCP) Close() {
	_ = t.l.Close()
}
