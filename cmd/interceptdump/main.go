// Command interceptdump accepts HTTP/1 or prior-knowledge HTTP/2 (h2c) connections, decodes
// every request into the canonical message form and prints it as a JSON line. Each request
// is answered with a short stub response, so ordinary clients can be pointed at it.
//
// Given a certificate, TLS is terminated and the protocol is picked by ALPN instead.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/internal/protocol/http1"
	"github.com/indigo-web/interceptor/internal/protocol/http2"
	"github.com/indigo-web/interceptor/transport"
)

const stubBody = "intercepted\n"

func main() {
	addr := flag.String("addr", "localhost:8080", "address to listen on")
	mode := flag.String("mode", "http1", "protocol of plain connections: http1 or h2c")
	certFile := flag.String("cert", "", "certificate file, enables TLS")
	keyFile := flag.String("key", "", "private key file of the certificate")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("cannot load config", zap.Error(err))
	}

	d := &dumper{
		cfg:    cfg,
		logger: logger,
		enc:    json.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout),
	}

	var (
		serve    func(net.Conn)
		listener transport.Transport = transport.NewTCP()
	)

	switch {
	case len(*certFile) > 0:
		cert, err := tls.LoadX509KeyPair(*certFile, *keyFile)
		if err != nil {
			logger.Fatal("cannot load certificate", zap.Error(err))
		}

		listener = transport.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		})
		serve = d.serveTLS
		*mode = "tls"
	case *mode == "http1":
		serve = d.serveHTTP1
	case *mode == "h2c":
		serve = func(conn net.Conn) { d.serveHTTP2(conn, "http") }
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}

	supervisor := transport.NewSupervisor()
	if err = supervisor.Add(*addr, listener, serve); err != nil {
		logger.Fatal("cannot bind", zap.String("addr", *addr), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("listening", zap.String("addr", *addr), zap.String("mode", *mode))
	if err = supervisor.Run(ctx, cfg.NET); err != nil {
		logger.Fatal("listener died", zap.Error(err))
	}
}

type dumper struct {
	cfg    *config.Config
	logger *zap.Logger
	mu     sync.Mutex
	enc    *json.Encoder
}

func (d *dumper) dump(msg *http.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.enc.Encode(msg); err != nil {
		d.logger.Warn("cannot dump message", zap.Error(err))
	}
}

func (d *dumper) serveHTTP1(conn net.Conn) {
	client := transport.NewClient(conn, d.cfg.NET.ReadTimeout, make([]byte, d.cfg.NET.ReadBufferSize))
	listener := &http1Listener{dumper: d}
	listener.suit = http1.NewSuit(d.cfg, http.Request, client, listener, zap.NewStdLog(d.logger))
	listener.suit.Serve()
}

type http1Listener struct {
	*dumper
	suit *http1.Suit
}

func (l *http1Listener) OnMessage(msg *http.Message) {
	l.dump(msg)

	msg.ResponseHeader.
		SetPrimeLine("HTTP/1.1 200 OK").
		Add("Content-Type", "text/plain").
		SetContentLength(len(stubBody))
	msg.ResponseBody.Append([]byte(stubBody))

	if err := l.suit.Write(msg); err != nil {
		l.logger.Warn("cannot respond", zap.Stringer("remote", msg.Sender), zap.Error(err))
	}
}

func (l *http1Listener) OnPassthrough(data []byte) {
	l.logger.Debug("passthrough", zap.Int("bytes", len(data)))
}

func (d *dumper) serveTLS(conn net.Conn) {
	protocol, err := transport.Handshake(conn)
	if err != nil {
		d.logger.Warn("TLS handshake failed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		return
	}

	if protocol == "h2" {
		d.serveHTTP2(conn, "https")
		return
	}

	d.serveHTTP1(conn)
}

func (d *dumper) serveHTTP2(conn net.Conn, scheme string) {
	listener := &http2Listener{dumper: d}
	listener.adapter = http2.NewAdapter(d.cfg, true, listener)
	session := http2.NewSession(d.cfg, true, conn, listener.adapter, zap.NewStdLog(d.logger))
	listener.writer = http2.NewWriter(d.cfg, true, scheme, session)

	if err := session.Handshake(); err != nil {
		d.logger.Warn("handshake failed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		return
	}

	if err := session.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
		d.logger.Warn("session failed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
	}
}

type http2Listener struct {
	*dumper
	adapter *http2.Adapter
	writer  *http2.Writer
}

func (l *http2Listener) OnMessage(msg *http.Message) {
	l.dump(msg)

	id, _ := msg.Props.Int(http.PropStreamID)
	if _, pending := l.adapter.Message(uint32(id)); pending {
		// the request isn't complete yet, e.g. it waits for 100-continue
		return
	}

	msg.ResponseHeader.
		SetPrimeLine("HTTP/2 200").
		Add("Content-Type", "text/plain")
	msg.ResponseBody.Append([]byte(stubBody))

	if _, err := l.writer.Write(msg); err != nil {
		l.logger.Warn("cannot respond", zap.Int("stream", id), zap.Error(err))
	}
}
