package http2

import (
	"errors"
	"strings"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/http/status"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

type Listener interface {
	// OnMessage is called when a message is complete, or when it must be processed before
	// the stream ends, as with interim responses. In the latter case the message stays bound
	// to the stream and may be mutated later.
	OnMessage(msg *http.Message)
}

// Adapter assembles messages out of the stream events of a single connection. Acting as a
// server it builds requests, otherwise responses.
type Adapter struct {
	cfg      *config.Config
	server   bool
	listener Listener
	streams  map[uint32]*http.Message
}

func NewAdapter(cfg *config.Config, server bool, listener Listener) *Adapter {
	return &Adapter{
		cfg:      cfg,
		server:   server,
		listener: listener,
		streams:  make(map[uint32]*http.Message),
	}
}

func (a *Adapter) kind() http.Kind {
	if a.server {
		return http.Request
	}

	return http.Response
}

// Message returns the message bound to the stream, if any.
func (a *Adapter) Message(streamID uint32) (*http.Message, bool) {
	msg, found := a.streams[streamID]
	return msg, found
}

// Streams returns the number of streams currently bound to messages.
func (a *Adapter) Streams() int {
	return len(a.streams)
}

func (a *Adapter) OnHeadersRead(streamID uint32, fields []hpack.HeaderField, endStream bool) error {
	return a.onHeaders(streamID, fields, nil, endStream)
}

// OnHeadersReadPriority is the same as OnHeadersRead, but records the priority of the stream.
// The exclusive flag affects only the dependency tree, which isn't tracked.
func (a *Adapter) OnHeadersReadPriority(
	streamID uint32, fields []hpack.HeaderField, dependency uint32, weight uint16, exclusive, endStream bool,
) error {
	return a.onHeaders(streamID, fields, &priority{
		dependency: dependency,
		weight:     weight,
	}, endStream)
}

type priority struct {
	dependency uint32
	weight     uint16
}

func (a *Adapter) onHeaders(streamID uint32, fields []hpack.HeaderField, prio *priority, endStream bool) error {
	kind := a.kind()
	msg, found := a.streams[streamID]

	switch {
	case !found:
		var err error
		if msg, err = a.newMessage(streamID, fields); err != nil {
			return err
		}

		if prio != nil {
			msg.Props.Set(http.PropStreamDependencyID, int(prio.dependency))
			msg.Props.Set(http.PropStreamWeight, int16(prio.weight))
		}

		a.streams[streamID] = msg
	case msg.Header(kind).Empty(), kind == http.Response && isInterim(msg.ResponseHeader) && hasPseudo(fields, pseudoStatus):
		// either the response to a promised request or the final response following
		// an interim one
		header, err := Build(kind, streamID, fields)
		if err = a.attach(msg, header, err); err != nil {
			return err
		}
	default:
		msg.Props.Set(http.TrailersKey(kind), toPairs(fields))
	}

	if endStream {
		a.complete(streamID, msg)
		return nil
	}

	if expectsContinue(msg.Header(kind)) || isInterim(msg.Header(kind)) {
		a.listener.OnMessage(msg)
	}

	return nil
}

func (a *Adapter) newMessage(streamID uint32, fields []hpack.HeaderField) (*http.Message, error) {
	header, err := Build(a.kind(), streamID, fields)
	msg := http.NewMessage()
	if err = a.attach(msg, header, err); err != nil {
		return nil, err
	}

	msg.Props.Set(http.PropHTTP2, true)
	msg.Props.Set(http.PropStreamID, int(streamID))

	return msg, nil
}

// attach sets the header block as the side of the message. Malformed blocks are attached
// along with the error, whereas other errors are returned back.
func (a *Adapter) attach(msg *http.Message, header *http.HeaderBlock, err error) error {
	if err != nil {
		var malformed *MalformedError
		if !errors.As(err, &malformed) {
			return err
		}

		msg.SetErr(err)
	}

	if a.kind() == http.Request {
		msg.RequestHeader = header
	} else {
		msg.ResponseHeader = header
	}

	msg.Body(a.kind()).SetContentEncodings(header)

	return nil
}

// OnDataRead appends the data to the body of the stream's message. The returned number of
// bytes, padding included, must be given back to the flow-control window.
func (a *Adapter) OnDataRead(streamID uint32, data []byte, padding int, endStream bool) (int, error) {
	msg, found := a.streams[streamID]
	if !found {
		return 0, newConnectionError(streamID, "Data Frame received for unknown stream id %d", streamID)
	}

	msg.Body(a.kind()).Append(data)

	if endStream {
		a.complete(streamID, msg)
	}

	return len(data) + padding, nil
}

// OnPushPromiseRead binds the promised request to the promised stream. The request isn't
// fired, as it's going to be completed by the response on the promised stream.
func (a *Adapter) OnPushPromiseRead(promisedID, parentID uint32, fields []hpack.HeaderField, padding int) error {
	if _, found := a.streams[promisedID]; found {
		return newConnectionError(
			promisedID, "Push Promise Frame received for pre-existing stream id %d", promisedID,
		)
	}

	header, err := BuildRequest(promisedID, fields)
	if err != nil {
		return err
	}

	msg := http.NewMessage()
	msg.RequestHeader = header
	msg.Props.Set(http.PropHTTP2, true)
	msg.Props.Set(http.PropStreamID, int(promisedID))
	msg.Props.Set(http.PropStreamWeight, a.cfg.HTTP2.DefaultWeight)
	msg.Props.Set(http.PropStreamPromise, true)
	a.streams[promisedID] = msg

	return nil
}

// OnRstStreamRead drops the stream's message without firing it.
func (a *Adapter) OnRstStreamRead(streamID uint32, _ http2.ErrCode) {
	delete(a.streams, streamID)
}

func (a *Adapter) OnStreamRemoved(streamID uint32) {
	delete(a.streams, streamID)
}

// Close drops all the streams.
func (a *Adapter) Close() {
	clear(a.streams)
}

func (a *Adapter) complete(streamID uint32, msg *http.Message) {
	kind := a.kind()
	header := msg.Header(kind)

	if kind == http.Request && header.BodilessMethod() {
		header.Del("Content-Length")
	} else {
		header.SetContentLength(msg.Body(kind).Len())
	}

	delete(a.streams, streamID)
	a.listener.OnMessage(msg)
}

func expectsContinue(header *http.HeaderBlock) bool {
	if header.Kind() != http.Request {
		return false
	}

	return strings.EqualFold(strings.TrimSpace(header.Value("Expect")), "100-continue")
}

func isInterim(header *http.HeaderBlock) bool {
	code, ok := header.StatusCode()
	return ok && status.IsInformational(code)
}

func hasPseudo(fields []hpack.HeaderField, name string) bool {
	for _, field := range fields {
		if field.Name == name {
			return true
		}
	}

	return false
}
