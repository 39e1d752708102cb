package http2

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/utils/uf"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

type Logger interface {
	Printf(format string, v ...any)
}

var errGoAway = errors.New("the peer is going away")

// Session drives a single HTTP/2 connection: frames read from it are dispatched into the
// adapter, while the frame writing part serves the Writer. Flow control of the incoming data
// is maintained by giving back everything that was consumed, the outgoing data isn't
// limited by the peer's windows.
//
// Header blocks are decoded as they are, without validation, so that malformed ones still
// reach the adapter and end up attached to messages.
type Session struct {
	cfg      *config.Config
	server   bool
	r        io.Reader
	w        io.Writer
	framer   *http2.Framer
	decoder  *hpack.Decoder
	encoder  *hpack.Encoder
	headers  bytes.Buffer
	block    *headerBlock
	adapter  *Adapter
	logger   Logger
	maxFrame uint32
	lastID   uint32
}

// headerBlock is a HEADERS or PUSH_PROMISE frame awaiting its CONTINUATION frames. The
// padding is recorded for push promises only.
type headerBlock struct {
	streamID  uint32
	promise   *http2.PushPromiseFrame
	headers   *http2.HeadersFrame
	padding   int
	fragments []byte
}

func NewSession(
	cfg *config.Config, server bool, rw io.ReadWriter, adapter *Adapter, logger Logger,
) *Session {
	if logger == nil {
		logger = log.Default()
	}

	s := &Session{
		cfg:      cfg,
		server:   server,
		r:        rw,
		w:        rw,
		adapter:  adapter,
		logger:   logger,
		maxFrame: 16 * 1024, // initial value of SETTINGS_MAX_FRAME_SIZE (RFC 9113, 6.5.2)
	}

	s.framer = http2.NewFramer(rw, rw)
	s.framer.SetMaxReadFrameSize(cfg.HTTP2.MaxFrameSize)
	// the order of HEADERS, PUSH_PROMISE and CONTINUATION is checked by the session, as the
	// framer doesn't expect CONTINUATION after PUSH_PROMISE
	s.framer.AllowIllegalReads = true
	s.decoder = hpack.NewDecoder(cfg.HTTP2.HeaderTableSize, nil)
	s.encoder = hpack.NewEncoder(&s.headers)

	return s
}

// Handshake exchanges the connection preface. Acting as a server, the client preface is
// expected first.
func (s *Session) Handshake() error {
	if s.server {
		if err := readPreface(s.r); err != nil {
			return err
		}
	} else if _, err := io.WriteString(s.w, http2.ClientPreface); err != nil {
		return err
	}

	return s.framer.WriteSettings(
		http2.Setting{ID: http2.SettingHeaderTableSize, Val: s.cfg.HTTP2.HeaderTableSize},
		http2.Setting{ID: http2.SettingMaxFrameSize, Val: s.cfg.HTTP2.MaxFrameSize},
		http2.Setting{ID: http2.SettingMaxHeaderListSize, Val: s.cfg.HTTP2.MaxHeaderListSize},
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: s.cfg.HTTP2.InitialWindowSize},
	)
}

func readPreface(r io.Reader) error {
	var buff [len(http2.ClientPreface)]byte
	if _, err := io.ReadFull(r, buff[:]); err != nil {
		return err
	}

	if uf.B2S(buff[:]) != http2.ClientPreface {
		return fmt.Errorf("http2: bad connection preface: %q", buff[:])
	}

	return nil
}

// Serve reads frames until the connection is closed or fails. Stream-scoped errors reset
// the stream only, whereas connection-scoped ones are answered with GOAWAY.
func (s *Session) Serve() error {
	defer s.adapter.Close()

	for {
		frame, err := s.framer.ReadFrame()
		if err == nil {
			err = s.dispatch(frame)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, errGoAway):
			return nil
		default:
			if err = s.handleError(err); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleError(err error) error {
	var (
		protocolErr *ProtocolError
		streamErr   http2.StreamError
		connErr     http2.ConnectionError
	)

	switch {
	case errors.As(err, &protocolErr) && !protocolErr.Connection:
		s.logger.Printf("http2: stream %d: %s", protocolErr.StreamID, protocolErr)
		return s.resetStream(protocolErr.StreamID, protocolErr.Code)
	case errors.As(err, &streamErr):
		s.logger.Printf("http2: stream %d: %s", streamErr.StreamID, streamErr)
		return s.resetStream(streamErr.StreamID, streamErr.Code)
	case errors.As(err, &connErr):
		s.logger.Printf("http2: connection error: %s", err)
		_ = s.framer.WriteGoAway(s.lastID, http2.ErrCode(connErr), []byte(err.Error()))
	}

	return err
}

func (s *Session) resetStream(streamID uint32, code http2.ErrCode) error {
	s.adapter.OnStreamRemoved(streamID)
	return s.framer.WriteRSTStream(streamID, code)
}

func (s *Session) dispatch(frame http2.Frame) error {
	if s.block != nil {
		continuation, ok := frame.(*http2.ContinuationFrame)
		if !ok || continuation.StreamID != s.block.streamID {
			return newConnectionError(
				s.block.streamID, "expected CONTINUATION frame for stream id %d", s.block.streamID,
			)
		}

		s.block.fragments = append(s.block.fragments, continuation.HeaderBlockFragment()...)
		if !continuation.HeadersEnded() {
			return nil
		}

		block := s.block
		s.block = nil

		return s.headerBlockRead(block)
	}

	switch frame := frame.(type) {
	case *http2.HeadersFrame:
		s.lastID = max(s.lastID, frame.StreamID)

		return s.beginHeaderBlock(&headerBlock{
			streamID: frame.StreamID,
			headers:  frame,
		}, frame.HeaderBlockFragment(), frame.HeadersEnded())
	case *http2.PushPromiseFrame:
		return s.beginHeaderBlock(&headerBlock{
			streamID: frame.StreamID,
			promise:  frame,
			padding:  int(frame.Length) - 4 - len(frame.HeaderBlockFragment()),
		}, frame.HeaderBlockFragment(), frame.HeadersEnded())
	case *http2.ContinuationFrame:
		return newConnectionError(frame.StreamID, "unexpected CONTINUATION frame for stream id %d", frame.StreamID)
	case *http2.DataFrame:
		// the padding includes the pad length octet, as it's subject to flow control too
		padding := int(frame.Length) - len(frame.Data())
		consumed, err := s.adapter.OnDataRead(frame.StreamID, frame.Data(), padding, frame.StreamEnded())
		if err != nil {
			// the connection window must be restored even for data that was refused
			if err := s.replenish(0, frame.Length); err != nil {
				return err
			}

			return err
		}

		if err = s.replenish(0, uint32(consumed)); err != nil || frame.StreamEnded() {
			return err
		}

		return s.replenish(frame.StreamID, uint32(consumed))
	case *http2.SettingsFrame:
		if frame.IsAck() {
			return nil
		}

		if size, found := frame.Value(http2.SettingMaxFrameSize); found {
			s.maxFrame = size
		}

		if size, found := frame.Value(http2.SettingHeaderTableSize); found {
			s.encoder.SetMaxDynamicTableSizeLimit(size)
		}

		return s.framer.WriteSettingsAck()
	case *http2.PingFrame:
		if frame.IsAck() {
			return nil
		}

		return s.framer.WritePing(true, frame.Data)
	case *http2.RSTStreamFrame:
		s.adapter.OnRstStreamRead(frame.StreamID, frame.ErrCode)
	case *http2.GoAwayFrame:
		return errGoAway
	}

	// WINDOW_UPDATE, PRIORITY and unknown frames are of no interest
	return nil
}

// beginHeaderBlock processes the block at once if it's complete, otherwise CONTINUATION
// frames are awaited.
func (s *Session) beginHeaderBlock(block *headerBlock, fragment []byte, ended bool) error {
	// the fragment belongs to the framer's read buffer, which is reused by the next read
	block.fragments = append([]byte(nil), fragment...)
	if !ended {
		s.block = block
		return nil
	}

	return s.headerBlockRead(block)
}

func (s *Session) headerBlockRead(block *headerBlock) error {
	fields, err := s.decoder.DecodeFull(block.fragments)
	if err != nil {
		// the dynamic table is out of sync from now on
		return http2.ConnectionError(http2.ErrCodeCompression)
	}

	if block.promise != nil {
		return s.adapter.OnPushPromiseRead(block.promise.PromiseID, block.streamID, fields, block.padding)
	}

	if listSize(fields) > s.cfg.HTTP2.MaxHeaderListSize {
		return newProtocolError(block.streamID, "header list of stream id %d is too large", block.streamID)
	}

	frame := block.headers
	if frame.HasPriority() {
		prio := frame.Priority
		return s.adapter.OnHeadersReadPriority(
			block.streamID, fields, prio.StreamDep, uint16(prio.Weight)+1, prio.Exclusive, frame.StreamEnded(),
		)
	}

	return s.adapter.OnHeadersRead(block.streamID, fields, frame.StreamEnded())
}

// listSize is the header list size as defined by SETTINGS_MAX_HEADER_LIST_SIZE.
func listSize(fields []hpack.HeaderField) (size uint32) {
	for _, field := range fields {
		size += field.Size()
	}

	return size
}

func (s *Session) replenish(streamID, n uint32) error {
	if n == 0 {
		return nil
	}

	return s.framer.WriteWindowUpdate(streamID, n)
}

// WriteHeaders encodes the fields and sends them as a HEADERS frame, followed by as many
// CONTINUATION frames as needed to fit the peer's frame size.
func (s *Session) WriteHeaders(
	streamID uint32, fields []hpack.HeaderField, prio http2.PriorityParam, endStream bool,
) error {
	s.headers.Reset()
	for _, field := range fields {
		if err := s.encoder.WriteField(field); err != nil {
			return err
		}
	}

	block := s.headers.Bytes()
	fragment, block := split(block, int(s.maxFrame))
	err := s.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: fragment,
		EndStream:     endStream,
		EndHeaders:    len(block) == 0,
		Priority:      prio,
	})

	for err == nil && len(block) > 0 {
		fragment, block = split(block, int(s.maxFrame))
		err = s.framer.WriteContinuation(streamID, len(block) == 0, fragment)
	}

	return err
}

// WriteData sends the data in frames fitting the peer's frame size.
func (s *Session) WriteData(streamID uint32, data []byte, endStream bool) error {
	for {
		var chunk []byte
		chunk, data = split(data, int(s.maxFrame))
		last := len(data) == 0

		if err := s.framer.WriteData(streamID, endStream && last, chunk); err != nil || last {
			return err
		}
	}
}

func split(data []byte, n int) (head, tail []byte) {
	n = min(n, len(data))
	return data[:n], data[n:]
}
