package http

import (
	"strconv"
	"strings"

	"github.com/indigo-web/interceptor/http/method"
	"github.com/indigo-web/interceptor/http/proto"
	"github.com/indigo-web/interceptor/http/status"
	"github.com/indigo-web/interceptor/kv"
)

// Kind tells which side of an exchange a header block or a body belongs to.
type Kind uint8

const (
	Request Kind = iota
	Response
)

func (k Kind) String() string {
	if k == Request {
		return "request"
	}

	return "response"
}

const crlf = "\r\n"

// HeaderBlock is an ordered sequence of header fields preceded by a prime line, which is
// either a request line or a status line, depending on the kind. Duplicate fields are
// permitted and their order is preserved.
type HeaderBlock struct {
	kind      Kind
	primeLine string
	fields    *kv.Storage
	malformed bool
}

func NewHeaderBlock(kind Kind) *HeaderBlock {
	return &HeaderBlock{
		kind:   kind,
		fields: kv.New(),
	}
}

func (h *HeaderBlock) Kind() Kind {
	return h.kind
}

// Empty reports whether the block has neither a prime line nor any fields.
func (h *HeaderBlock) Empty() bool {
	return len(h.primeLine) == 0 && h.fields.Empty()
}

// Malformed reports whether the block was reconstructed from invalid data. This is independent
// of emptiness: a malformed block usually carries whatever could be parsed.
func (h *HeaderBlock) Malformed() bool {
	return h.malformed
}

func (h *HeaderBlock) SetMalformed(flag bool) *HeaderBlock {
	h.malformed = flag
	return h
}

func (h *HeaderBlock) PrimeLine() string {
	return h.primeLine
}

func (h *HeaderBlock) SetPrimeLine(line string) *HeaderBlock {
	h.primeLine = line
	return h
}

// Fields exposes the underlying storage. Mutations are reflected in the block.
func (h *HeaderBlock) Fields() *kv.Storage {
	return h.fields
}

func (h *HeaderBlock) Add(name, value string) *HeaderBlock {
	h.fields.Add(name, value)
	return h
}

func (h *HeaderBlock) Set(name, value string) *HeaderBlock {
	h.fields.Set(name, value)
	return h
}

func (h *HeaderBlock) Del(name string) *HeaderBlock {
	h.fields.Delete(name)
	return h
}

func (h *HeaderBlock) Value(name string) string {
	return h.fields.Value(name)
}

func (h *HeaderBlock) Has(name string) bool {
	return h.fields.Has(name)
}

// ContentLength returns the value of the last Content-Length field, as it's the one that
// governs the body length. If there's none or it isn't a valid non-negative integer, -1 is
// returned.
func (h *HeaderBlock) ContentLength() int {
	value, found := h.fields.Last("Content-Length")
	if !found {
		return -1
	}

	length, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || length < 0 {
		return -1
	}

	return length
}

// SetContentLength rewrites the first Content-Length field, dropping the rest, or appends one
// if there was none.
func (h *HeaderBlock) SetContentLength(length int) *HeaderBlock {
	return h.Set("Content-Length", strconv.Itoa(length))
}

// Method returns the first token of the request line.
func (h *HeaderBlock) Method() string {
	token, _, _ := strings.Cut(h.primeLine, " ")
	return token
}

// Target returns the request target, as written in the request line.
func (h *HeaderBlock) Target() string {
	_, rest, found := strings.Cut(h.primeLine, " ")
	if !found {
		return ""
	}

	if sp := strings.LastIndexByte(rest, ' '); sp != -1 {
		return rest[:sp]
	}

	return rest
}

// Version returns the protocol of the prime line, regardless of the kind.
func (h *HeaderBlock) Version() proto.Protocol {
	if h.kind == Response {
		token, _, _ := strings.Cut(h.primeLine, " ")
		return proto.FromString(token)
	}

	sp := strings.LastIndexByte(h.primeLine, ' ')
	return proto.FromString(h.primeLine[sp+1:])
}

// StatusCode returns the code of the status line. False is returned if the block isn't a
// response or the code isn't valid.
func (h *HeaderBlock) StatusCode() (status.Code, bool) {
	if h.kind != Response {
		return 0, false
	}

	_, rest, _ := strings.Cut(h.primeLine, " ")
	code, _, _ := strings.Cut(rest, " ")
	return status.Parse(code)
}

// Reason returns the reason phrase of the status line, if any.
func (h *HeaderBlock) Reason() string {
	_, rest, _ := strings.Cut(h.primeLine, " ")
	_, reason, _ := strings.Cut(rest, " ")
	return reason
}

// BodilessMethod reports whether the request line names a method conventionally carrying
// no body.
func (h *HeaderBlock) BodilessMethod() bool {
	return method.IsBodiless(method.Parse(h.Method()))
}

// PrimeLineString returns the prime line terminated by CRLF, or nothing for an empty block.
func (h *HeaderBlock) PrimeLineString() string {
	if len(h.primeLine) == 0 {
		return ""
	}

	return h.primeLine + crlf
}

// FieldsString serializes every field as a `Name: value` line terminated by CRLF.
func (h *HeaderBlock) FieldsString() string {
	var b strings.Builder
	for name, value := range h.fields.Pairs() {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString(crlf)
	}

	return b.String()
}

// String returns the whole block in its wire form, including the terminating empty line.
func (h *HeaderBlock) String() string {
	if h.Empty() {
		return ""
	}

	return h.PrimeLineString() + h.FieldsString() + crlf
}

// Clone returns a deep copy of the block.
func (h *HeaderBlock) Clone() *HeaderBlock {
	return &HeaderBlock{
		kind:      h.kind,
		primeLine: h.primeLine,
		fields:    h.fields.Clone(),
		malformed: h.malformed,
	}
}
