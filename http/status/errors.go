package status

// HTTPError is an error that occurred while decoding a message. The code is the status a
// proxy would have answered the peer with, if it was to answer at all.
type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrMalformedHeader      = NewError(BadRequest, "malformed header")
	ErrBadPrimeLine         = NewError(BadRequest, "malformed prime line")
	ErrBadContentLength     = NewError(BadRequest, "invalid Content-Length value")
	ErrBadChunk             = NewError(BadRequest, "malformed chunk-encoded data")
	ErrMissingSeparator     = NewError(BadRequest, "missing name/value separator in header field")
	ErrHeaderFieldsTooLarge = NewError(RequestHeaderFieldsTooLarge, "too large headers section")
	ErrIncompleteHeader     = NewError(BadRequest, "connection closed before receiving full header")
	ErrIncompleteBody       = NewError(BadRequest, "connection closed before receiving full body")
	ErrNoRemote             = NewError(InternalServerError, "remote address of the connection is unknown")
	ErrUnknownTLS           = NewError(InternalServerError, "TLS state of the connection is unknown")
)
