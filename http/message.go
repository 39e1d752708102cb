package http

import (
	"net"
)

// Message is a single exchange: a request and a response, each consisting of a header block
// and a body. Either side may be empty, depending on which direction is being decoded.
type Message struct {
	// RequestHeader is never nil, however may be empty.
	RequestHeader *HeaderBlock
	RequestBody   *Body
	// ResponseHeader is never nil, however may be empty.
	ResponseHeader *HeaderBlock
	ResponseBody   *Body
	// Props carries protocol metadata, like HTTP/2 stream attributes or the decode error.
	Props Properties
	// Sender is the address of the peer the message was received from.
	Sender net.Addr
	// Secure tells whether the connection had completed the TLS handshake by the time the
	// message was decoded.
	Secure bool
}

func NewMessage() *Message {
	return &Message{
		RequestHeader:  NewHeaderBlock(Request),
		RequestBody:    NewBody(),
		ResponseHeader: NewHeaderBlock(Response),
		ResponseBody:   NewBody(),
	}
}

// Header returns the header block of the passed side.
func (m *Message) Header(kind Kind) *HeaderBlock {
	if kind == Request {
		return m.RequestHeader
	}

	return m.ResponseHeader
}

// Body returns the body of the passed side.
func (m *Message) Body(kind Kind) *Body {
	if kind == Request {
		return m.RequestBody
	}

	return m.ResponseBody
}

// Err returns the error met while decoding the message, if any.
func (m *Message) Err() error {
	err, _ := m.Props.Error(PropDecodeError)
	return err
}

func (m *Message) SetErr(err error) {
	m.Props.Set(PropDecodeError, err)
}
