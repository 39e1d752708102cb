package http1

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/indigo-web/interceptor/http/status"
	"github.com/indigo-web/interceptor/internal/buffer"
	"github.com/indigo-web/interceptor/kv"
	"github.com/indigo-web/utils/uf"
)

type chunkedParserState uint8

const (
	eChunkLength chunkedParserState = iota
	eChunkBody
	eChunkDelimiter
	eChunkTrailer
)

// chunkedParser decodes a chunked body leniently: chunk length lines may be surrounded by
// whitespace and followed by extensions or any garbage up to the line end, and the bytes
// after chunk data are skipped up to the nearest LF. Trailer fields are appended to the
// storage passed into Parse.
type chunkedParser struct {
	state       chunkedParserState
	chunkLength int64
	line        *buffer.Buffer
}

func newChunkedParser(line *buffer.Buffer) chunkedParser {
	return chunkedParser{
		state: eChunkLength,
		line:  line,
	}
}

// Parse returns a chunk when it's ready, nil otherwise. io.EOF signals that the body
// is complete, in which case extra holds the bytes past the body. The parser resets
// automatically.
func (c *chunkedParser) Parse(data []byte, trailers *kv.Storage) (chunk, extra []byte, err error) {
	switch c.state {
	case eChunkLength:
		goto chunkLength
	case eChunkBody:
		goto chunkBody
	case eChunkDelimiter:
		goto chunkDelimiter
	case eChunkTrailer:
		goto trailer
	default:
		panic("unreachable code")
	}

chunkLength:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !c.line.Append(data) {
				return nil, nil, status.ErrBadChunk
			}

			c.state = eChunkLength
			return nil, nil, nil
		}

		if !c.line.Append(data[:lf]) {
			return nil, nil, status.ErrBadChunk
		}

		c.chunkLength, err = parseChunkLength(stripCR(c.line.Preview()))
		c.line.Drop()
		if err != nil {
			return nil, nil, err
		}

		data = data[lf+1:]
		if c.chunkLength == 0 {
			goto trailer
		}
	}

chunkBody:
	{
		if len(data) == 0 {
			c.state = eChunkBody
			return nil, nil, nil
		}

		n := min(c.chunkLength, int64(len(data)))
		c.chunkLength -= n

		if c.chunkLength == 0 {
			c.state = eChunkDelimiter
		} else {
			c.state = eChunkBody
		}

		return data[:n], data[n:], nil
	}

chunkDelimiter:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			c.state = eChunkDelimiter
			return nil, nil, nil
		}

		data = data[lf+1:]
		goto chunkLength
	}

trailer:
	for {
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !c.line.Append(data) {
				return nil, nil, status.ErrHeaderFieldsTooLarge
			}

			c.state = eChunkTrailer
			return nil, nil, nil
		}

		if !c.line.Append(data[:lf]) {
			return nil, nil, status.ErrHeaderFieldsTooLarge
		}

		data = data[lf+1:]
		line := stripCR(c.line.Finish())
		if len(line) == 0 {
			c.state = eChunkLength
			return nil, data, io.EOF
		}

		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			return nil, nil, fmt.Errorf("%w: %s", status.ErrMissingSeparator, line)
		}

		name := trimSpaces(line[:colon])
		if len(name) == 0 {
			return nil, nil, fmt.Errorf("%w: %q", status.ErrMalformedHeader, line)
		}

		trailers.Add(string(name), string(trimSpaces(line[colon+1:])))
	}
}

// parseChunkLength cuts the length token at the first semicolon, whitespace or control
// character and parses what's left as a hexadecimal number.
func parseChunkLength(line []byte) (int64, error) {
	line = trimSpaces(line)
	for i, char := range line {
		if char == ';' || char <= ' ' || char == 0x7f {
			line = line[:i]
			break
		}
	}

	length, err := strconv.ParseInt(uf.B2S(line), 16, 64)
	if err != nil || length < 0 {
		return 0, fmt.Errorf("%w: invalid chunk size %q", status.ErrBadChunk, line)
	}

	return length, nil
}

// trimSpaces strips every ASCII control character and space from both ends.
func trimSpaces(b []byte) []byte {
	for len(b) > 0 && b[0] <= ' ' {
		b = b[1:]
	}

	for len(b) > 0 && b[len(b)-1] <= ' ' {
		b = b[:len(b)-1]
	}

	return b
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}
