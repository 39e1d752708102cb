package config

import (
	"time"
)

type (
	HeaderSpace struct {
		Default, Maximal int
	}

	Decoder struct {
		// HeaderSpace limits the amount of memory occupied by a single header block: the prime
		// line, fields and trailers alike. Exceeding it is a decode error, after which the
		// connection is no longer parsed.
		HeaderSpace HeaderSpace
	}

	HTTP2 struct {
		// DefaultWeight is the priority weight recorded for streams with no explicit one.
		DefaultWeight int16
		// HeaderTableSize is the size of HPACK dynamic table, both decoding and encoding.
		HeaderTableSize uint32
		// MaxFrameSize is the largest frame payload we're willing to receive. Outgoing frames
		// are split by the size the peer advertised.
		MaxFrameSize uint32
		// MaxHeaderListSize limits the uncompressed size of a single header list.
		MaxHeaderListSize uint32
		// InitialWindowSize is the flow-control window advertised for every stream.
		InitialWindowSize uint32
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
		// ShutdownTimeout is how long live connections are waited for on shutdown, before
		// they are closed forcibly.
		ShutdownTimeout time.Duration
	}
)

// Config holds settings used across the codec, mainly restrictions, limitations and
// pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Decoder Decoder
	HTTP2   HTTP2
	NET     NET
}

// Default returns default config. Body sizes are deliberately absent: capping a message is a
// decision of whoever inspects it.
func Default() *Config {
	return &Config{
		Decoder: Decoder{
			HeaderSpace: HeaderSpace{
				Default: 1 * 1024,  // 1kb for headers must be fairly enough in most cases.
				Maximal: 64 * 1024, // However, there also might be extremely long cookies.
			},
		},
		HTTP2: HTTP2{
			DefaultWeight:     16, // RFC 9113, 5.3.5
			HeaderTableSize:   4096,
			MaxFrameSize:      16 * 1024,
			MaxHeaderListSize: 1 << 20,
			InitialWindowSize: 65535,
		},
		NET: NET{
			ReadBufferSize:            4 * 1024,
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
			ShutdownTimeout:           10 * time.Second,
		},
	}
}
