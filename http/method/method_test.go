package method

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethod(t *testing.T) {
	for _, method := range []Method{GET, HEAD, POST, PUT, DELETE, CONNECT, OPTIONS, TRACE, PATCH} {
		assert.Equal(t, method, Parse(method.String()))
	}

	assert.Equal(t, Unknown, Parse(""))
	assert.Equal(t, Unknown, Parse("get"))
	assert.Equal(t, Unknown, Parse("METHOD"))
}

func TestIsBodiless(t *testing.T) {
	for _, m := range []Method{GET, HEAD, DELETE, CONNECT, TRACE} {
		assert.True(t, IsBodiless(m), m.String())
	}

	for _, m := range []Method{POST, PUT, PATCH, OPTIONS, Unknown} {
		assert.False(t, IsBodiless(m), m.String())
	}
}
