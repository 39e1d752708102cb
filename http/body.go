package http

import (
	"strings"

	"github.com/indigo-web/utils/uf"
)

// Body is an append-only byte sequence, accompanied by the list of content encodings applied
// to it. Encodings are informational only: the codec never transforms the payload.
type Body struct {
	data      []byte
	encodings []string
}

func NewBody() *Body {
	return new(Body)
}

// Append writes a copy of the data at the end of the body.
func (b *Body) Append(data []byte) {
	b.data = append(b.data, data...)
}

// Bytes returns the accumulated content. The slice is valid until the next Append or Reset.
func (b *Body) Bytes() []byte {
	return b.data
}

func (b *Body) String() string {
	return uf.B2S(b.data)
}

func (b *Body) Len() int {
	return len(b.data)
}

func (b *Body) Empty() bool {
	return len(b.data) == 0
}

// ContentEncodings returns the encodings, in the order they were applied.
func (b *Body) ContentEncodings() []string {
	return b.encodings
}

// SetContentEncodings derives the encodings from all the Content-Encoding fields of the header.
// Tokens are trimmed, empty and identity tokens are skipped.
func (b *Body) SetContentEncodings(header *HeaderBlock) {
	b.encodings = b.encodings[:0]

	for value := range header.Fields().Values("Content-Encoding") {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if len(token) == 0 || strings.EqualFold(token, "identity") {
				continue
			}

			b.encodings = append(b.encodings, strings.ToLower(token))
		}
	}
}
