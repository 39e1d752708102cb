package http2

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

type channelListener chan *http.Message

func (c channelListener) OnMessage(msg *http.Message) {
	c <- msg
}

// peerFrame is a copy of the frame's meaningful parts, as frames returned by the framer
// are valid only until the next read.
type peerFrame struct {
	Type      http2.FrameType
	StreamID  uint32
	Ack       bool
	Increment uint32
	Code      http2.ErrCode
	Data      []byte
}

type testPeer struct {
	t       *testing.T
	conn    net.Conn
	framer  *http2.Framer
	frames  chan peerFrame
	headers bytes.Buffer
	encoder *hpack.Encoder
}

func newTestPeer(t *testing.T, conn net.Conn) *testPeer {
	p := &testPeer{
		t:      t,
		conn:   conn,
		framer: http2.NewFramer(conn, conn),
		frames: make(chan peerFrame, 16),
	}
	p.encoder = hpack.NewEncoder(&p.headers)

	go p.read()

	return p
}

func (p *testPeer) read() {
	defer close(p.frames)

	for {
		frame, err := p.framer.ReadFrame()
		if err != nil {
			return
		}

		pf := peerFrame{
			Type:     frame.Header().Type,
			StreamID: frame.Header().StreamID,
			Ack:      frame.Header().Flags.Has(http2.FlagSettingsAck),
		}

		switch frame := frame.(type) {
		case *http2.WindowUpdateFrame:
			pf.Increment = frame.Increment
		case *http2.RSTStreamFrame:
			pf.Code = frame.ErrCode
		case *http2.GoAwayFrame:
			pf.Code = frame.ErrCode
		case *http2.PingFrame:
			pf.Data = append([]byte(nil), frame.Data[:]...)
		case *http2.DataFrame:
			pf.Data = append([]byte(nil), frame.Data()...)
		}

		p.frames <- pf
	}
}

func (p *testPeer) expect() peerFrame {
	select {
	case frame, ok := <-p.frames:
		require.True(p.t, ok, "connection closed")
		return frame
	case <-time.After(time.Second):
		require.FailNow(p.t, "no frame was received")
		return peerFrame{}
	}
}

func (p *testPeer) encode(fields []hpack.HeaderField) []byte {
	p.headers.Reset()
	for _, field := range fields {
		require.NoError(p.t, p.encoder.WriteField(field))
	}

	return append([]byte(nil), p.headers.Bytes()...)
}

func (p *testPeer) writeHeaders(streamID uint32, fields []hpack.HeaderField, endStream bool) {
	require.NoError(p.t, p.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: p.encode(fields),
		EndStream:     endStream,
		EndHeaders:    true,
	}))
}

func (p *testPeer) expectGoAway(done <-chan error) {
	goAway := p.expect()
	require.Equal(p.t, http2.FrameGoAway, goAway.Type)
	require.Equal(p.t, http2.ErrCodeProtocol, goAway.Code)

	select {
	case err := <-done:
		require.ErrorIs(p.t, err, http2.ConnectionError(http2.ErrCodeProtocol))
	case <-time.After(time.Second):
		require.FailNow(p.t, "session didn't stop")
	}
}

// startSession runs a server session on one side of the pipe, passing through the
// handshake on the peer's side.
func startSession(t *testing.T) (*testPeer, channelListener, <-chan error) {
	return startSessionOf(t, true)
}

func startSessionOf(t *testing.T, server bool) (*testPeer, channelListener, <-chan error) {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = remote.Close()
		_ = local.Close()
	})

	listener := make(channelListener, 4)
	cfg := config.Default()
	session := NewSession(cfg, server, local, NewAdapter(cfg, server, listener), nopLogger{})

	done := make(chan error, 1)
	go func() {
		if err := session.Handshake(); err != nil {
			done <- err
			return
		}

		done <- session.Serve()
	}()

	if server {
		_, err := io.WriteString(remote, http2.ClientPreface)
		require.NoError(t, err)
	} else {
		preface := make([]byte, len(http2.ClientPreface))
		_, err := io.ReadFull(remote, preface)
		require.NoError(t, err)
		require.Equal(t, http2.ClientPreface, string(preface))
	}

	peer := newTestPeer(t, remote)

	settings := peer.expect()
	require.Equal(t, http2.FrameSettings, settings.Type)
	require.False(t, settings.Ack)

	require.NoError(t, peer.framer.WriteSettings())
	ack := peer.expect()
	require.Equal(t, http2.FrameSettings, ack.Type)
	require.True(t, ack.Ack)

	return peer, listener, done
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

func receive(t *testing.T, listener channelListener) *http.Message {
	select {
	case msg := <-listener:
		return msg
	case <-time.After(time.Second):
		require.FailNow(t, "no message was received")
		return nil
	}
}

func TestSession(t *testing.T) {
	t.Run("request with body", func(t *testing.T) {
		peer, listener, _ := startSession(t)
		peer.writeHeaders(1, postRequest, false)
		require.NoError(t, peer.framer.WriteData(1, false, []byte("Hello, ")))

		update := peer.expect()
		require.Equal(t, http2.FrameWindowUpdate, update.Type)
		require.Zero(t, update.StreamID)
		require.Equal(t, uint32(7), update.Increment)

		update = peer.expect()
		require.Equal(t, http2.FrameWindowUpdate, update.Type)
		require.Equal(t, uint32(1), update.StreamID)
		require.Equal(t, uint32(7), update.Increment)

		require.NoError(t, peer.framer.WriteData(1, true, []byte("world!")))
		update = peer.expect()
		require.Zero(t, update.StreamID)
		require.Equal(t, uint32(6), update.Increment)

		msg := receive(t, listener)
		require.Equal(t, "POST https://example.com/ HTTP/2", msg.RequestHeader.PrimeLine())
		require.Equal(t, "Hello, world!", msg.RequestBody.String())
		require.Equal(t, 13, msg.RequestHeader.ContentLength())
	})

	t.Run("padded data", func(t *testing.T) {
		peer, listener, _ := startSession(t)
		peer.writeHeaders(1, postRequest, false)
		require.NoError(t, peer.framer.WriteDataPadded(1, true, []byte("abc"), make([]byte, 4)))

		update := peer.expect()
		require.Equal(t, http2.FrameWindowUpdate, update.Type)
		// the pad length octet is counted as well
		require.Equal(t, uint32(8), update.Increment)
		require.Equal(t, "abc", receive(t, listener).RequestBody.String())
	})

	t.Run("ping", func(t *testing.T) {
		peer, _, _ := startSession(t)
		data := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
		require.NoError(t, peer.framer.WritePing(false, data))

		pong := peer.expect()
		require.Equal(t, http2.FramePing, pong.Type)
		require.True(t, pong.Ack)
		require.Equal(t, data[:], pong.Data)
	})

	t.Run("missing pseudo-header", func(t *testing.T) {
		peer, listener, _ := startSession(t)
		peer.writeHeaders(1, hf(":scheme", "https", ":authority", "a"), true)

		rst := peer.expect()
		require.Equal(t, http2.FrameRSTStream, rst.Type)
		require.Equal(t, uint32(1), rst.StreamID)
		require.Equal(t, http2.ErrCodeProtocol, rst.Code)

		// the connection survives the stream reset
		peer.writeHeaders(3, getRequest, true)
		msg := receive(t, listener)
		id, _ := msg.Props.Int(http.PropStreamID)
		require.Equal(t, 3, id)
	})

	t.Run("malformed pseudo-header is kept as a field", func(t *testing.T) {
		peer, listener, _ := startSession(t)
		peer.writeHeaders(1, hf(
			":method", "GET", ":scheme", "https", ":authority", "a.example", ":path", "/",
			"header-a", "value-a", ":invalid-1", "value-1", "Upper-Case", "x",
		), true)

		msg := receive(t, listener)
		require.Equal(t, "GET https://a.example/ HTTP/2", msg.RequestHeader.PrimeLine())
		require.Equal(t, "value-a", msg.RequestHeader.Value("header-a"))
		require.Equal(t, "value-1", msg.RequestHeader.Value(":invalid-1"))
		require.Equal(t, "x", msg.RequestHeader.Value("upper-case"))
	})

	t.Run("continuation", func(t *testing.T) {
		peer, listener, _ := startSession(t)
		block := peer.encode(postRequest)
		require.NoError(t, peer.framer.WriteHeaders(http2.HeadersFrameParam{
			StreamID:      1,
			BlockFragment: block[:3],
			EndStream:     true,
		}))
		require.NoError(t, peer.framer.WriteContinuation(1, false, block[3:5]))
		require.NoError(t, peer.framer.WriteContinuation(1, true, block[5:]))

		msg := receive(t, listener)
		require.Equal(t, "POST https://example.com/ HTTP/2", msg.RequestHeader.PrimeLine())
	})

	t.Run("frame interleaving a header block", func(t *testing.T) {
		peer, _, done := startSession(t)
		block := peer.encode(getRequest)
		require.NoError(t, peer.framer.WriteHeaders(http2.HeadersFrameParam{
			StreamID:      1,
			BlockFragment: block[:3],
			EndStream:     true,
		}))
		require.NoError(t, peer.framer.WritePing(false, [8]byte{}))

		peer.expectGoAway(done)
	})

	t.Run("data for unknown stream", func(t *testing.T) {
		peer, listener, done := startSession(t)
		require.NoError(t, peer.framer.WriteData(7, true, []byte("x")))

		update := peer.expect()
		require.Equal(t, http2.FrameWindowUpdate, update.Type)
		require.Zero(t, update.StreamID)
		require.Equal(t, uint32(1), update.Increment)

		peer.expectGoAway(done)
		require.Empty(t, listener)
	})

	t.Run("push promise with continuation", func(t *testing.T) {
		peer, listener, _ := startSessionOf(t, false)
		block := peer.encode(getRequest)
		require.NoError(t, peer.framer.WritePushPromise(http2.PushPromiseParam{
			StreamID:      1,
			PromiseID:     2,
			BlockFragment: block[:4],
		}))
		require.NoError(t, peer.framer.WriteContinuation(1, true, block[4:]))
		peer.writeHeaders(2, hf(":status", "200"), true)

		msg := receive(t, listener)
		require.Equal(t, "GET https://example.com/ HTTP/2", msg.RequestHeader.PrimeLine())
		require.Equal(t, "HTTP/2 200", msg.ResponseHeader.PrimeLine())
		promise, _ := msg.Props.Bool(http.PropStreamPromise)
		require.True(t, promise)
	})

	t.Run("push promise for existing stream", func(t *testing.T) {
		peer, _, done := startSessionOf(t, false)
		for range 2 {
			require.NoError(t, peer.framer.WritePushPromise(http2.PushPromiseParam{
				StreamID:      1,
				PromiseID:     2,
				BlockFragment: peer.encode(getRequest),
				EndHeaders:    true,
			}))
		}

		peer.expectGoAway(done)
	})

	t.Run("go away", func(t *testing.T) {
		peer, _, done := startSession(t)
		require.NoError(t, peer.framer.WriteGoAway(0, http2.ErrCodeNo, nil))

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			require.FailNow(t, "session didn't stop")
		}
	})

	t.Run("connection closed", func(t *testing.T) {
		peer, _, done := startSession(t)
		require.NoError(t, peer.conn.Close())
		require.NoError(t, <-done)
	})

	t.Run("bad preface", func(t *testing.T) {
		server, client := net.Pipe()
		defer client.Close()
		cfg := config.Default()
		session := NewSession(cfg, true, server, NewAdapter(cfg, true, make(channelListener)), nopLogger{})

		go func() {
			_, _ = io.WriteString(client, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
		}()

		require.Error(t, session.Handshake())
	})
}

func TestSessionWriter(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	cfg := config.Default()
	session := NewSession(cfg, true, server, NewAdapter(cfg, true, make(channelListener)), nopLogger{})
	writer := NewWriter(cfg, true, "https", session)

	peer := http2.NewFramer(client, client)
	peer.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	msg := http.NewMessage()
	msg.ResponseHeader.SetPrimeLine("HTTP/1.1 200 OK").Add("Server", "interceptor")
	msg.ResponseBody.Append(bytes.Repeat([]byte("a"), 20*1024))

	done := make(chan error, 1)
	go func() {
		_, err := writer.Write(msg)
		done <- err
	}()

	frame, err := peer.ReadFrame()
	require.NoError(t, err)
	headers := frame.(*http2.MetaHeadersFrame)
	require.Equal(t, uint32(2), headers.StreamID)
	require.False(t, headers.StreamEnded())
	require.Equal(t, "200", headers.PseudoValue("status"))

	var body []byte
	for {
		frame, err = peer.ReadFrame()
		require.NoError(t, err)
		data := frame.(*http2.DataFrame)
		require.LessOrEqual(t, len(data.Data()), 16*1024)
		body = append(body, data.Data()...)
		if data.StreamEnded() {
			break
		}
	}

	require.Len(t, body, 20*1024)
	require.NoError(t, <-done)
}
