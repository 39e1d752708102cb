package http2

import (
	"strconv"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// FrameWriter sends frames of a single connection.
type FrameWriter interface {
	WriteHeaders(streamID uint32, fields []hpack.HeaderField, prio http2.PriorityParam, endStream bool) error
	WriteData(streamID uint32, data []byte, endStream bool) error
}

// Writer encodes messages into HTTP/2 streams. Acting as a server it writes responses,
// otherwise requests.
type Writer struct {
	cfg    *config.Config
	server bool
	scheme string
	frames FrameWriter
	nextID uint32
}

func NewWriter(cfg *config.Config, server bool, scheme string, frames FrameWriter) *Writer {
	nextID := uint32(1)
	if server {
		nextID = 2
	}

	return &Writer{
		cfg:    cfg,
		server: server,
		scheme: scheme,
		frames: frames,
		nextID: nextID,
	}
}

func (w *Writer) kind() http.Kind {
	if w.server {
		return http.Response
	}

	return http.Request
}

// Write sends the message into its stream, which is either the one recorded in the message
// properties or the next free one. The stream id is returned back.
func (w *Writer) Write(msg *http.Message) (uint32, error) {
	kind := w.kind()
	header, body := msg.Header(kind), msg.Body(kind)
	streamID := w.streamID(msg)

	fields := ToHTTP2Headers(w.scheme, header)
	fields = withContentLength(fields, body.Len())
	trailers := BuildTrailers(msg, kind)

	endStream := body.Empty() && len(trailers) == 0
	if err := w.frames.WriteHeaders(streamID, fields, w.priority(msg), endStream); err != nil {
		return streamID, err
	}

	if !body.Empty() {
		if err := w.frames.WriteData(streamID, body.Bytes(), len(trailers) == 0); err != nil {
			return streamID, err
		}
	}

	if len(trailers) > 0 {
		return streamID, w.frames.WriteHeaders(streamID, trailers, http2.PriorityParam{}, true)
	}

	return streamID, nil
}

func (w *Writer) streamID(msg *http.Message) uint32 {
	id, found := msg.Props.Int(http.PropStreamID)
	if !found || id <= 0 {
		streamID := w.nextID
		w.nextID += 2
		msg.Props.Set(http.PropStreamID, int(streamID))

		return streamID
	}

	// preset ids aren't reused by the automatic assignment
	if streamID := uint32(id); streamID >= w.nextID && streamID%2 == w.nextID%2 {
		w.nextID = streamID + 2
	}

	return uint32(id)
}

func (w *Writer) priority(msg *http.Message) http2.PriorityParam {
	var prio http2.PriorityParam

	if dependency, found := msg.Props.Int(http.PropStreamDependencyID); found {
		prio.StreamDep = uint32(dependency)
	}

	weight, found := msg.Props.Int16(http.PropStreamWeight)
	if !found {
		if prio.IsZero() {
			return prio
		}

		weight = w.cfg.HTTP2.DefaultWeight
	}

	// the weight is transmitted decremented by one (RFC 9113, 6.3)
	prio.Weight = uint8(min(max(weight, 1), 256) - 1)

	return prio
}

// withContentLength replaces every content-length field by the actual length of the body.
func withContentLength(fields []hpack.HeaderField, length int) []hpack.HeaderField {
	n := 0
	for _, field := range fields {
		if field.Name != "content-length" {
			fields[n] = field
			n++
		}
	}

	fields = fields[:n]
	if length > 0 {
		fields = append(fields, hpack.HeaderField{Name: "content-length", Value: strconv.Itoa(length)})
	}

	return fields
}
