package http2

import (
	"strings"

	"github.com/indigo-web/interceptor/http"
	"github.com/indigo-web/interceptor/http/method"
	"github.com/indigo-web/interceptor/http/status"
	"github.com/indigo-web/interceptor/kv"
	"github.com/indigo-web/utils/strcomp"
	"golang.org/x/net/http2/hpack"
)

const (
	pseudoMethod    = ":method"
	pseudoScheme    = ":scheme"
	pseudoAuthority = ":authority"
	pseudoPath      = ":path"
	pseudoStatus    = ":status"
)

// primeLineVersion is the version written into the prime lines of translated blocks.
const primeLineVersion = "HTTP/2"

// BuildRequest translates the request pseudo-headers into a request line and copies the rest
// of the fields in their order. Cookie crumbs, which HTTP/2 allows to be split, are merged back
// into a single field.
func BuildRequest(streamID uint32, fields []hpack.HeaderField) (*http.HeaderBlock, error) {
	var (
		methodName, scheme, authority, path string
		cookies                             []string
		hasCookie                           bool
	)

	header := http.NewHeaderBlock(http.Request)

	for _, field := range fields {
		switch field.Name {
		case pseudoMethod:
			methodName = field.Value
		case pseudoScheme:
			scheme = field.Value
		case pseudoAuthority:
			authority = field.Value
		case pseudoPath:
			path = field.Value
		default:
			switch {
			case strcomp.EqualFold(field.Name, "cookie"):
				cookies = append(cookies, field.Value)
				hasCookie = true
			case strcomp.EqualFold(field.Name, "transfer-encoding"):
			default:
				header.Add(field.Name, field.Value)
			}
		}
	}

	switch {
	case len(methodName) == 0:
		return nil, newProtocolError(streamID, "HTTP/2 headers does not have a method.")
	case len(scheme) == 0:
		return nil, newProtocolError(streamID, "HTTP/2 headers does not have a scheme.")
	case len(authority) == 0:
		return nil, newProtocolError(streamID, "HTTP/2 headers does not have an authority.")
	}

	if method.Parse(methodName) == method.CONNECT {
		header.SetPrimeLine(methodName + " " + authority + " " + primeLineVersion)
	} else {
		if len(path) == 0 {
			path = "/"
		}

		header.SetPrimeLine(methodName + " " + scheme + "://" + authority + path + " " + primeLineVersion)
	}

	if hasCookie {
		header.Add("cookie", mergeCookies(cookies))
	}

	return header, nil
}

func mergeCookies(cookies []string) string {
	if len(cookies) == 1 {
		return cookies[0]
	}

	var b strings.Builder
	for _, cookie := range cookies {
		if b.Len() > 0 {
			b.WriteString("; ")
		}

		b.WriteString(cookie)
	}

	return b.String()
}

// BuildResponse translates the :status pseudo-header into a status line. A status that isn't
// a valid code doesn't prevent the block from being built, however it's marked malformed and
// a MalformedError is returned along with it.
func BuildResponse(streamID uint32, fields []hpack.HeaderField) (*http.HeaderBlock, error) {
	var statusCode string
	header := http.NewHeaderBlock(http.Response)

	for _, field := range fields {
		switch {
		case field.Name == pseudoStatus:
			statusCode = field.Value
		case strcomp.EqualFold(field.Name, "transfer-encoding"):
		default:
			header.Add(field.Name, field.Value)
		}
	}

	if len(statusCode) == 0 {
		return http.NewHeaderBlock(http.Response), newProtocolError(streamID, "HTTP/2 headers does not have a status.")
	}

	header.SetPrimeLine(primeLineVersion + " " + statusCode)

	if _, ok := status.Parse(statusCode); !ok {
		header.SetMalformed(true)
		return header, &MalformedError{
			StreamID: streamID,
			Message:  "HTTP/2 headers has an invalid status: " + statusCode,
		}
	}

	return header, nil
}

// Build translates the fields into a header block of the passed kind.
func Build(kind http.Kind, streamID uint32, fields []hpack.HeaderField) (*http.HeaderBlock, error) {
	if kind == http.Request {
		return BuildRequest(streamID, fields)
	}

	return BuildResponse(streamID, fields)
}

// connection-specific fields are prohibited in HTTP/2 (RFC 9113, 8.2.2)
var connectionSpecific = []string{
	"transfer-encoding", "connection", "keep-alive", "proxy-connection", "upgrade",
}

// ToHTTP2Headers translates the header block into a HTTP/2 header list: pseudo-headers
// first, then the fields with lowercased names.
func ToHTTP2Headers(scheme string, header *http.HeaderBlock) []hpack.HeaderField {
	fields := make([]hpack.HeaderField, 0, header.Fields().Len()+4)

	if header.Kind() == http.Response {
		_, rest, _ := strings.Cut(header.PrimeLine(), " ")
		code, _, _ := strings.Cut(rest, " ")
		fields = append(fields, hpack.HeaderField{Name: pseudoStatus, Value: code})

		return appendFields(fields, header, false)
	}

	methodName := header.Method()
	targetScheme, authority, path := splitTarget(header.Target())
	if host, found := header.Fields().Get("Host"); found {
		authority = host
	}

	if method.Parse(methodName) == method.CONNECT {
		// CONNECT carries neither :scheme nor :path (RFC 9113, 8.5)
		fields = append(fields,
			hpack.HeaderField{Name: pseudoMethod, Value: methodName},
			hpack.HeaderField{Name: pseudoAuthority, Value: header.Target()},
		)

		return appendFields(fields, header, true)
	}

	if len(targetScheme) > 0 {
		scheme = targetScheme
	}

	if len(path) == 0 {
		path = "/"
	}

	fields = append(fields,
		hpack.HeaderField{Name: pseudoScheme, Value: scheme},
		hpack.HeaderField{Name: pseudoMethod, Value: methodName},
		hpack.HeaderField{Name: pseudoPath, Value: path},
		hpack.HeaderField{Name: pseudoAuthority, Value: authority},
	)

	return appendFields(fields, header, true)
}

func appendFields(fields []hpack.HeaderField, header *http.HeaderBlock, splitCookie bool) []hpack.HeaderField {
	for name, value := range header.Fields().Pairs() {
		name = strings.ToLower(name)
		if isConnectionSpecific(name) {
			continue
		}

		if splitCookie && name == "cookie" {
			for _, crumb := range strings.Split(value, ";") {
				fields = append(fields, hpack.HeaderField{Name: name, Value: strings.TrimSpace(crumb)})
			}

			continue
		}

		fields = append(fields, hpack.HeaderField{Name: name, Value: value})
	}

	return fields
}

func isConnectionSpecific(name string) bool {
	for _, field := range connectionSpecific {
		if name == field {
			return true
		}
	}

	return false
}

// splitTarget splits the absolute-form target into its components. Targets in the origin
// form are returned as the path.
func splitTarget(target string) (scheme, authority, path string) {
	scheme, rest, found := strings.Cut(target, "://")
	if !found {
		return "", "", target
	}

	if end := strings.IndexAny(rest, "/?"); end != -1 {
		return scheme, rest[:end], rest[end:]
	}

	// asterisk-form, which is only used by OPTIONS, is glued to the authority
	if authority, found := strings.CutSuffix(rest, "*"); found {
		return scheme, authority, "*"
	}

	return scheme, rest, ""
}

// BuildTrailers returns the trailer fields recorded for the side of the message.
func BuildTrailers(msg *http.Message, kind http.Kind) []hpack.HeaderField {
	pairs, found := msg.Props.Fields(http.TrailersKey(kind))
	if !found {
		return nil
	}

	fields := make([]hpack.HeaderField, 0, len(pairs))
	for _, pair := range pairs {
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(pair.Key), Value: pair.Value})
	}

	return fields
}

// toPairs copies the fields, pseudo-headers excluded.
func toPairs(fields []hpack.HeaderField) []kv.Pair {
	pairs := make([]kv.Pair, 0, len(fields))
	for _, field := range fields {
		if field.IsPseudo() {
			continue
		}

		pairs = append(pairs, kv.Pair{Key: field.Name, Value: field.Value})
	}

	return pairs
}
