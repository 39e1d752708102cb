package http

import (
	"errors"
	"net"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"github.com/indigo-web/interceptor/kv"
)

func TestProperties(t *testing.T) {
	t.Run("absent means not applicable", func(t *testing.T) {
		var p Properties
		_, found := p.Int(PropStreamID)
		require.False(t, found)
		require.Zero(t, p.Len())
	})

	t.Run("typed getters", func(t *testing.T) {
		var p Properties
		p.Set(PropHTTP2, true)
		p.Set(PropStreamID, 3)
		p.Set(PropStreamWeight, int16(16))
		p.Set(PropRequestTrailers, []kv.Pair{{"a", "1"}})

		isHTTP2, _ := p.Bool(PropHTTP2)
		require.True(t, isHTTP2)
		id, _ := p.Int(PropStreamID)
		require.Equal(t, 3, id)
		weight, _ := p.Int16(PropStreamWeight)
		require.Equal(t, int16(16), weight)
		trailers, _ := p.Fields(PropRequestTrailers)
		require.Equal(t, []kv.Pair{{"a", "1"}}, trailers)

		_, found := p.Int(PropStreamWeight)
		require.False(t, found, "mistyped access must not succeed")
	})

	t.Run("names", func(t *testing.T) {
		for key := PropKey(1); key <= propKeysCount; key++ {
			resolved, found := LookupPropKey(key.String())
			require.True(t, found)
			require.Equal(t, key, resolved)
		}

		_, found := LookupPropKey("http2.stream.idd")
		require.False(t, found)
	})

	t.Run("iteration order", func(t *testing.T) {
		var p Properties
		p.Set(PropDecodeError, errors.New("x"))
		p.Set(PropHTTP2, true)

		var keys []PropKey
		for key := range p.All() {
			keys = append(keys, key)
		}

		require.Equal(t, []PropKey{PropHTTP2, PropDecodeError}, keys)
	})
}

func TestMessage(t *testing.T) {
	t.Run("sides", func(t *testing.T) {
		msg := NewMessage()
		require.Same(t, msg.RequestHeader, msg.Header(Request))
		require.Same(t, msg.ResponseBody, msg.Body(Response))
		require.NoError(t, msg.Err())

		msg.SetErr(errors.New("oops"))
		require.EqualError(t, msg.Err(), "oops")
	})

	t.Run("json", func(t *testing.T) {
		msg := NewMessage()
		msg.RequestHeader.SetPrimeLine("GET / HTTP/1.1").Add("Host", "localhost")
		msg.Props.Set(PropDecodeError, errors.New("boom"))
		msg.Sender = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}

		data, err := json.Marshal(msg)
		require.NoError(t, err)

		var view map[string]any
		require.NoError(t, json.Unmarshal(data, &view))
		require.Equal(t, "127.0.0.1:8080", view["sender"])
		require.NotContains(t, view, "response")
		require.Equal(t, "boom", view["properties"].(map[string]any)["decode.error"])
		require.Equal(t, "GET / HTTP/1.1", view["request"].(map[string]any)["prime_line"])
	})
}
