package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromString(t *testing.T) {
	for raw, want := range map[string]Protocol{
		"HTTP/1.0": HTTP10,
		"HTTP/1.1": HTTP11,
		"HTTP/2":   HTTP2,
		"HTTP/2.0": HTTP2,
		"HTTP/3":   Unknown,
		"HTTP/1x1": Unknown,
		"http/1.1": Unknown,
		"":         Unknown,
	} {
		require.Equal(t, want, FromString(raw), raw)
	}
}

func TestLeavesHTTP1(t *testing.T) {
	require.True(t, LeavesHTTP1("websocket"))
	require.True(t, LeavesHTTP1("h2c"))
	require.True(t, LeavesHTTP1(""))
	require.False(t, LeavesHTTP1("HTTP/1.1"))
	require.False(t, LeavesHTTP1("http/1.0, websocket"))
}
