package proto

import (
	"strings"
)

type Protocol uint8

const (
	Unknown Protocol = 0
	HTTP10  Protocol = 1 << iota
	HTTP11
	HTTP2

	HTTP1 = HTTP10 | HTTP11
)

func (p Protocol) String() string {
	lut := [...]string{HTTP10: "HTTP/1.0", HTTP11: "HTTP/1.1", HTTP2: "HTTP/2"}
	if int(p) >= len(lut) {
		return ""
	}

	return lut[p]
}

const httpScheme = "HTTP/"

var majorMinorVersionLUT = [10][10]Protocol{
	1: {0: HTTP10, 1: HTTP11},
	2: {0: HTTP2},
}

// FromString recognizes both HTTP/x.y and HTTP/x forms of a version token.
func FromString(raw string) Protocol {
	if !strings.HasPrefix(raw, httpScheme) {
		return Unknown
	}

	switch version := raw[len(httpScheme):]; len(version) {
	case 1:
		return Parse(version[0]-'0', 0)
	case 3:
		if version[1] != '.' {
			return Unknown
		}

		return Parse(version[0]-'0', version[2]-'0')
	default:
		return Unknown
	}
}

func Parse(major, minor uint8) Protocol {
	if major > 9 || minor > 9 {
		return Unknown
	}

	return majorMinorVersionLUT[major][minor]
}

// LeavesHTTP1 reports whether an Upgrade header value switches the connection to something
// that isn't HTTP/1.x anymore, so its bytes mustn't be parsed as HTTP further.
func LeavesHTTP1(upgrade string) bool {
	upgrade = strings.ToUpper(upgrade)
	return !strings.Contains(upgrade, HTTP10.String()) && !strings.Contains(upgrade, HTTP11.String())
}
