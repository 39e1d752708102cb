package http1

import (
	"errors"
	"io"
	"log"
	"net"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/transport"
)

type Logger interface {
	Printf(format string, v ...any)
}

// Suit binds a decoder and an encoder to a single connection. Bytes read from the client are
// decoded as messages of the given kind, while the encoder writes back into the same client.
type Suit struct {
	*Decoder
	*Encoder
	client transport.Client
	logger Logger
}

func NewSuit(
	cfg *config.Config, kind http.Kind, client transport.Client, listener Listener, logger Logger,
) *Suit {
	if logger == nil {
		logger = log.Default()
	}

	// the encoder writes the opposite side: responses to requests and vice versa
	outgoing := http.Response
	if kind == http.Response {
		outgoing = http.Request
	}

	return &Suit{
		Decoder: NewDecoder(cfg, kind, client, listener),
		Encoder: NewEncoder(outgoing, client, make([]byte, 0, cfg.NET.ReadBufferSize)),
		client:  client,
		logger:  logger,
	}
}

// ServeOnce reads from the client once and decodes whatever was received. False is returned
// when the connection must not be served anymore.
func (s *Suit) ServeOnce() bool {
	data, err := s.client.Read()
	if len(data) > 0 {
		s.Decode(data)
	}

	if err != nil {
		s.Close()

		if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			// read errors most probably mean deadline exceeding, which isn't worth more than
			// just a notice
			s.logger.Printf("http1: %s: read: %s", s.client.Remote(), err)
		}

		return false
	}

	return true
}

// Serve decodes the connection until it's closed.
func (s *Suit) Serve() {
	for s.ServeOnce() {
	}
}
