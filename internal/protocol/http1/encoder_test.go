package http1

import (
	"testing"

	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/transport/dummy"
	"github.com/stretchr/testify/require"
)

func TestEncoder(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		header := http.NewHeaderBlock(http.Request).
			SetPrimeLine("POST /upload HTTP/1.1").
			Add("Host", "example.com").
			Add("Content-Length", "5")
		body := http.NewBody()
		body.Append([]byte("hello"))

		got := AppendMessage(nil, header, body)
		require.Equal(t, "POST /upload HTTP/1.1\r\nHost: example.com\r\nContent-Length: 5\r\n\r\nhello", string(got))
	})

	t.Run("empty body", func(t *testing.T) {
		header := http.NewHeaderBlock(http.Response).SetPrimeLine("HTTP/1.1 204 No Content")
		got := AppendMessage(nil, header, http.NewBody())
		require.Equal(t, "HTTP/1.1 204 No Content\r\n\r\n", string(got))
	})

	t.Run("utf-8 is preserved", func(t *testing.T) {
		header := http.NewHeaderBlock(http.Response).
			SetPrimeLine("HTTP/1.1 200 Гаразд").
			Add("X-Name", "Павло ✓")
		got := AppendMessage(nil, header, nil)
		require.Equal(t, "HTTP/1.1 200 Гаразд\r\nX-Name: Павло ✓\r\n\r\n", string(got))
	})

	t.Run("round trip", func(t *testing.T) {
		raw := "POST / HTTP/1.1\r\nHost: localhost\r\nContent-Length: 13\r\n\r\nHello, world!"
		d, r := newDecoder(http.Request)
		d.Decode([]byte(raw))
		require.Len(t, r.messages, 1)

		client := dummy.NewMockClient()
		encoder := NewEncoder(http.Request, client, make([]byte, 0, 64))
		require.NoError(t, encoder.Write(r.messages[0]))
		require.Equal(t, raw, client.Written())
	})

	t.Run("response side", func(t *testing.T) {
		msg := http.NewMessage()
		msg.RequestHeader.SetPrimeLine("GET / HTTP/1.1")
		msg.ResponseHeader.SetPrimeLine("HTTP/1.1 200 OK").Add("Content-Length", "2")
		msg.ResponseBody.Append([]byte("ok"))

		client := dummy.NewMockClient()
		encoder := NewEncoder(http.Response, client, nil)
		require.NoError(t, encoder.Write(msg))
		require.NoError(t, encoder.WriteRaw([]byte("\x00raw")))
		require.Equal(t, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok\x00raw", client.Written())
	})
}
