package http1

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/http/proto"
	"github.com/indigo-web/interceptor/http/status"
	"github.com/indigo-web/interceptor/internal/buffer"
)

// Listener receives everything the decoder produces.
type Listener interface {
	// OnMessage is called once per decoded message, including malformed ones. The decoder
	// never touches the message after handing it out.
	OnMessage(msg *http.Message)
	// OnPassthrough receives raw bytes of a connection that has left HTTP/1.x.
	OnPassthrough(data []byte)
}

// Peer describes the connection the bytes are coming from.
type Peer interface {
	Remote() net.Addr
	// Secure reports whether the TLS handshake was completed. Known is false if the state
	// cannot be determined yet.
	Secure() (secure, known bool)
}

type decoderState uint8

const (
	eHeader decoderState = iota
	eFixedBody
	eVariableBody
	eChunked
	eDiscard
	eUpgraded
)

type headerState uint8

const (
	eHeaderBegin headerState = iota
	ePrimeLine
	eFieldLine
)

// Decoder is a stream decoder of HTTP/1.x messages of a single direction. It's fed with
// arbitrarily fragmented bytes and emits a message every time one is completed. Once
// a malformed message is met, the rest of the stream is silently discarded, as there's no
// reliable way to find where the next message starts.
type Decoder struct {
	kind        http.Kind
	peer        Peer
	listener    Listener
	state       decoderState
	headerState headerState
	buff        buffer.Buffer
	chunked     chunkedParser
	msg         *http.Message
	bodyLeft    int
}

func NewDecoder(cfg *config.Config, kind http.Kind, peer Peer, listener Listener) *Decoder {
	d := &Decoder{
		kind:     kind,
		peer:     peer,
		listener: listener,
		buff:     buffer.New(cfg.Decoder.HeaderSpace.Default, cfg.Decoder.HeaderSpace.Maximal),
	}
	d.chunked = newChunkedParser(&d.buff)

	return d
}

// Decode consumes the data completely. Messages are emitted synchronously, so by the time
// the method returns, every message completed by the data was already handed out.
func (d *Decoder) Decode(data []byte) {
	for len(data) > 0 {
		switch d.state {
		case eHeader:
			data = d.readHeader(data)
		case eFixedBody:
			data = d.readFixedBody(data)
		case eVariableBody:
			d.body().Append(data)
			return
		case eChunked:
			data = d.readChunkedBody(data)
		case eDiscard:
			return
		case eUpgraded:
			d.listener.OnPassthrough(data)
			return
		default:
			panic("unreachable code")
		}
	}
}

// Close notifies the decoder that no more data will arrive. A message in progress is
// either completed, if its body is delimited by the connection closure, or emitted with
// an error attached. Every Decode afterwards is a no-op.
func (d *Decoder) Close() {
	switch d.state {
	case eDiscard, eUpgraded:
		return
	case eHeader:
		if d.msg != nil {
			d.fail(status.ErrIncompleteHeader)
		}
	case eVariableBody:
		d.complete(nil)
	default:
		d.fail(status.ErrIncompleteBody)
	}

	d.state = eDiscard
}

func (d *Decoder) header() *http.HeaderBlock {
	return d.msg.Header(d.kind)
}

func (d *Decoder) body() *http.Body {
	return d.msg.Body(d.kind)
}

func (d *Decoder) readHeader(data []byte) []byte {
	switch d.headerState {
	case eHeaderBegin:
		goto begin
	case ePrimeLine:
		goto primeLine
	case eFieldLine:
		goto fieldLine
	default:
		panic("unreachable code")
	}

begin:
	// empty lines preceding the prime line are ignored
	for len(data) > 0 && (data[0] == '\r' || data[0] == '\n') {
		data = data[1:]
	}

	if len(data) == 0 {
		return nil
	}

	d.msg = http.NewMessage()

primeLine:
	{
		line, rest, err := d.line(data)
		if err != nil {
			return d.failHeader(err)
		}

		if rest == nil {
			d.headerState = ePrimeLine
			return nil
		}

		data = rest
		d.header().SetPrimeLine(string(line))
		if !d.validPrimeLine(line) {
			return d.failHeader(fmt.Errorf("%w: %q", status.ErrBadPrimeLine, line))
		}
	}

fieldLine:
	for {
		line, rest, err := d.line(data)
		if err != nil {
			return d.failHeader(err)
		}

		if rest == nil {
			d.headerState = eFieldLine
			return nil
		}

		data = rest

		if len(line) == 0 {
			d.headerState = eHeaderBegin
			return d.headerCompleted(data)
		}

		if line[0] == ' ' || line[0] == '\t' {
			// obsolete line folding continues the value of the previous field
			fields := d.header().Fields().Expose()
			if len(fields) == 0 {
				return d.failHeader(fmt.Errorf("%w: %q", status.ErrMalformedHeader, line))
			}

			last := &fields[len(fields)-1]
			last.Value = strings.TrimSpace(last.Value + " " + string(trimSpaces(line)))
			continue
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return d.failHeader(fmt.Errorf("%w: %q", status.ErrMalformedHeader, line))
		}

		name := trimSpaces(line[:colon])
		if len(name) == 0 {
			return d.failHeader(fmt.Errorf("%w: %q", status.ErrMalformedHeader, line))
		}

		d.header().Add(string(name), string(trimSpaces(line[colon+1:])))
	}
}

// line accumulates data up to the nearest LF. Once the line is complete, it is returned
// without the line terminator along with the data past it. Otherwise, rest is nil.
func (d *Decoder) line(data []byte) (line, rest []byte, err error) {
	lf := bytes.IndexByte(data, '\n')
	if lf == -1 {
		if !d.buff.Append(data) {
			return nil, nil, status.ErrHeaderFieldsTooLarge
		}

		return nil, nil, nil
	}

	if !d.buff.Append(data[:lf]) {
		return nil, nil, status.ErrHeaderFieldsTooLarge
	}

	return stripCR(d.buff.Finish()), data[lf+1:], nil
}

func (d *Decoder) validPrimeLine(line []byte) bool {
	if d.kind == http.Request {
		sp := bytes.IndexByte(line, ' ')
		lastSP := bytes.LastIndexByte(line, ' ')
		if sp <= 0 || lastSP == sp {
			return false
		}

		return isToken(line[:sp]) && len(bytes.TrimSpace(line[sp+1:lastSP])) > 0 &&
			validVersion(line[lastSP+1:])
	}

	version, rest, _ := bytes.Cut(line, []byte(" "))
	code, _, _ := bytes.Cut(rest, []byte(" "))

	return validVersion(version) && len(code) == 3 &&
		isDigit(code[0]) && isDigit(code[1]) && isDigit(code[2])
}

// headerCompleted attaches the transport facts to the message and decides, how the body
// must be read.
func (d *Decoder) headerCompleted(data []byte) []byte {
	if d.peer == nil || d.peer.Remote() == nil {
		return d.fail(status.ErrNoRemote)
	}

	secure, known := d.peer.Secure()
	if !known {
		return d.fail(status.ErrUnknownTLS)
	}

	d.msg.Sender = d.peer.Remote()
	d.msg.Secure = secure

	header := d.header()
	d.body().SetContentEncodings(header)

	if d.kind == http.Response {
		if code, ok := header.StatusCode(); ok && status.IsBodiless(code) {
			return d.complete(data)
		}
	}

	if isChunked(header) {
		d.state = eChunked
		return data
	}

	value, found := header.Fields().Last("Content-Length")
	if !found {
		if d.kind == http.Request {
			// requests without any length indicator have no body (RFC 9112, 6.3). Only
			// responses are delimited by the connection closure
			return d.complete(data)
		}

		d.state = eVariableBody
		return data
	}

	length := header.ContentLength()
	switch length {
	case -1:
		header.SetMalformed(true)
		return d.fail(fmt.Errorf("%w: %q", status.ErrBadContentLength, value))
	case 0:
		return d.complete(data)
	}

	d.bodyLeft = length
	d.state = eFixedBody

	return data
}

func (d *Decoder) readFixedBody(data []byte) []byte {
	n := min(d.bodyLeft, len(data))
	d.body().Append(data[:n])
	d.bodyLeft -= n

	if d.bodyLeft == 0 {
		return d.complete(data[n:])
	}

	return nil
}

func (d *Decoder) readChunkedBody(data []byte) []byte {
	header := d.header()

	for {
		chunk, extra, err := d.chunked.Parse(data, header.Fields())
		switch err {
		case nil:
		case io.EOF:
			header.Del("Transfer-Encoding")
			header.SetContentLength(d.body().Len())
			return d.complete(extra)
		default:
			return d.fail(err)
		}

		d.body().Append(chunk)
		if len(extra) == 0 {
			return nil
		}

		data = extra
	}
}

// complete hands the message out and prepares for the next one. The data past the
// message is returned back.
func (d *Decoder) complete(data []byte) []byte {
	msg := d.msg
	d.reset()

	if d.kind == http.Response && switchesProtocol(msg.ResponseHeader) {
		d.state = eUpgraded
	}

	d.listener.OnMessage(msg)

	return data
}

func (d *Decoder) failHeader(err error) []byte {
	d.header().SetMalformed(true)
	return d.fail(err)
}

// fail emits the message in progress with the error attached, and discards the rest
// of the stream.
func (d *Decoder) fail(err error) []byte {
	if d.msg == nil {
		d.msg = http.NewMessage()
	}

	msg := d.msg
	msg.SetErr(err)
	d.reset()
	d.state = eDiscard
	d.listener.OnMessage(msg)

	return nil
}

func (d *Decoder) reset() {
	d.msg = nil
	d.bodyLeft = 0
	d.buff.Clear()
	d.state = eHeader
	d.headerState = eHeaderBegin
}

func isChunked(header *http.HeaderBlock) bool {
	for value := range header.Fields().Values("Transfer-Encoding") {
		if strings.Contains(strings.ToLower(value), "chunked") {
			return true
		}
	}

	return false
}

func switchesProtocol(header *http.HeaderBlock) bool {
	code, ok := header.StatusCode()
	if !ok || code != status.SwitchingProtocols {
		return false
	}

	upgrade, found := header.Fields().Get("Upgrade")
	return found && proto.LeavesHTTP1(upgrade)
}

// validVersion accepts the HTTP/x.y form.
func validVersion(version []byte) bool {
	return len(version) == len("HTTP/x.y") && bytes.HasPrefix(version, []byte("HTTP/")) &&
		isDigit(version[5]) && version[6] == '.' && isDigit(version[7])
}

func isDigit(char byte) bool {
	return char >= '0' && char <= '9'
}

// isToken reports whether the string consists of tchars only (RFC 9110, 5.6.2).
func isToken(str []byte) bool {
	if len(str) == 0 {
		return false
	}

	for _, char := range str {
		switch {
		case char >= 'a' && char <= 'z', char >= 'A' && char <= 'Z', isDigit(char):
		case strings.IndexByte("!#$%&'*+-.^_`|~", char) != -1:
		default:
			return false
		}
	}

	return true
}
