package http1

import (
	"io"

	"github.com/indigo-web/interceptor/http"
)

// AppendMessage appends the wire form of the header block and the body to dst. Header
// text is written byte for byte, and nothing follows the header if the body is empty.
func AppendMessage(dst []byte, header *http.HeaderBlock, body *http.Body) []byte {
	dst = append(dst, header.PrimeLineString()...)
	dst = append(dst, header.FieldsString()...)
	dst = append(dst, crlf...)

	if body != nil && !body.Empty() {
		dst = append(dst, body.Bytes()...)
	}

	return dst
}

const crlf = "\r\n"

// Encoder writes one side of messages into the connection. The body is sent as is,
// so the header block is expected to describe its framing correctly.
type Encoder struct {
	kind   http.Kind
	client io.Writer
	buff   []byte
}

func NewEncoder(kind http.Kind, client io.Writer, buff []byte) *Encoder {
	return &Encoder{
		kind:   kind,
		client: client,
		buff:   buff[:0],
	}
}

// Write encodes the side of the message the encoder was made for and flushes it at once.
func (e *Encoder) Write(msg *http.Message) error {
	e.buff = AppendMessage(e.buff[:0], msg.Header(e.kind), msg.Body(e.kind))
	_, err := e.client.Write(e.buff)

	return err
}

// WriteRaw passes already encoded data through.
func (e *Encoder) WriteRaw(data []byte) error {
	_, err := e.client.Write(data)
	return err
}
