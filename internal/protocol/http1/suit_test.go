package http1

import (
	"strings"
	"testing"

	"github.com/indigo-web/interceptor/config"
	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/http/status"
	"github.com/indigo-web/interceptor/transport/dummy"
	"github.com/stretchr/testify/require"
)

type logRecorder struct {
	lines []string
}

func (l *logRecorder) Printf(format string, _ ...any) {
	l.lines = append(l.lines, format)
}

func disperse(data []byte, n int) (parts [][]byte) {
	for len(data) > 0 {
		end := min(len(data), n)
		part := data[:end]
		parts = append(parts, part)
		data = data[end:]
	}

	return parts
}

func getSuit(kind http.Kind, client *dummy.Client) (*Suit, *recorder, *logRecorder) {
	r, logger := new(recorder), new(logRecorder)
	return NewSuit(config.Default(), kind, client, r, logger), r, logger
}

func TestSuit(t *testing.T) {
	t.Run("requests", func(t *testing.T) {
		raw := []byte(strings.Repeat("GET / HTTP/1.1\r\nAccept-Encoding: identity\r\n\r\n", 10))
		client := dummy.NewMockClient(disperse(raw, 7)...)
		suit, r, logger := getSuit(http.Request, client)
		suit.Serve()

		require.Len(t, r.messages, 10)
		for _, msg := range r.messages {
			require.NoError(t, msg.Err())
			require.Equal(t, "identity", msg.RequestHeader.Value("accept-encoding"))
			require.Equal(t, dummy.Addr, msg.Sender)
		}

		require.Empty(t, logger.lines)
	})

	t.Run("response until close", func(t *testing.T) {
		client := dummy.NewMockClient(
			[]byte("HTTP/1.0 200 OK\r\n\r\n"), []byte("Hello, "), []byte("world!"),
		).TLS()
		suit, r, _ := getSuit(http.Response, client)
		suit.Serve()

		require.Len(t, r.messages, 1)
		require.Equal(t, "Hello, world!", r.messages[0].ResponseBody.String())
		require.True(t, r.messages[0].Secure)
	})

	t.Run("incomplete request", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nhi"))
		suit, r, _ := getSuit(http.Request, client)
		require.True(t, suit.ServeOnce())
		require.Empty(t, r.messages)
		require.False(t, suit.ServeOnce())

		require.Len(t, r.messages, 1)
		require.ErrorIs(t, r.messages[0].Err(), status.ErrIncompleteBody)
	})

	t.Run("answer", func(t *testing.T) {
		client := dummy.NewMockClient([]byte("GET / HTTP/1.1\r\n\r\n"))
		suit, r, _ := getSuit(http.Request, client)
		require.True(t, suit.ServeOnce())
		require.Len(t, r.messages, 1)

		msg := r.messages[0]
		msg.ResponseHeader.SetPrimeLine("HTTP/1.1 200 OK").Add("Content-Length", "0")
		require.NoError(t, suit.Write(msg))
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n", client.Written())
	})
}
