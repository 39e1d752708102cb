package http2

import (
	"fmt"

	"golang.org/x/net/http2"
)

// ProtocolError is a violation of the HTTP/2 protocol. Unless it's connection-wide, only the
// stream must be reset with the code, and the connection may be used further. Otherwise the
// connection is to be closed with GOAWAY.
type ProtocolError struct {
	StreamID   uint32
	Code       http2.ErrCode
	Message    string
	Connection bool
}

func newProtocolError(streamID uint32, format string, v ...any) *ProtocolError {
	return &ProtocolError{
		StreamID: streamID,
		Code:     http2.ErrCodeProtocol,
		Message:  fmt.Sprintf(format, v...),
	}
}

func newConnectionError(streamID uint32, format string, v ...any) *ProtocolError {
	err := newProtocolError(streamID, format, v...)
	err.Connection = true

	return err
}

func (p *ProtocolError) Error() string {
	return p.Message
}

// Unwrap exposes connection-wide errors as http2.ConnectionError.
func (p *ProtocolError) Unwrap() error {
	if p.Connection {
		return http2.ConnectionError(p.Code)
	}

	return nil
}

// MalformedError means the header block was reconstructed, however some of its parts are
// invalid. Unlike ProtocolError, it doesn't prevent the message from being processed.
type MalformedError struct {
	StreamID uint32
	Message  string
}

func (m *MalformedError) Error() string {
	return m.Message
}
