package http

import (
	"iter"

	"github.com/indigo-web/interceptor/kv"
)

// PropKey is a closed set of keys of the message property bag. Each key has a stable string
// name, which other components may rely on.
type PropKey uint8

const (
	// PropHTTP2 (bool) marks an exchange carried over HTTP/2.
	PropHTTP2 PropKey = iota + 1
	// PropStreamID (int) is the HTTP/2 stream the exchange belongs to.
	PropStreamID
	// PropStreamDependencyID (int) is the stream the exchange's stream depends on.
	PropStreamDependencyID
	// PropStreamWeight (int16) is the priority weight of the stream.
	PropStreamWeight
	// PropStreamPromise (bool) marks a server-pushed exchange.
	PropStreamPromise
	// PropRequestTrailers ([]kv.Pair) are trailer fields of the request.
	PropRequestTrailers
	// PropResponseTrailers ([]kv.Pair) are trailer fields of the response.
	PropResponseTrailers
	// PropDecodeError (error) is the error met while decoding the message.
	PropDecodeError

	propKeysCount = iota
)

var propNames = [...]string{
	PropHTTP2:              "http2",
	PropStreamID:           "http2.stream.id",
	PropStreamDependencyID: "http2.stream.dependency.id",
	PropStreamWeight:       "http2.stream.weight",
	PropStreamPromise:      "http2.stream.promise",
	PropRequestTrailers:    "http2.trailers.req",
	PropResponseTrailers:   "http2.trailers.resp",
	PropDecodeError:        "decode.error",
}

func (k PropKey) String() string {
	if int(k) >= len(propNames) {
		return ""
	}

	return propNames[k]
}

// LookupPropKey resolves the string name of a key.
func LookupPropKey(name string) (PropKey, bool) {
	for key := PropKey(1); key <= propKeysCount; key++ {
		if propNames[key] == name {
			return key, true
		}
	}

	return 0, false
}

// TrailersKey returns the trailers key of the passed side.
func TrailersKey(kind Kind) PropKey {
	if kind == Request {
		return PropRequestTrailers
	}

	return PropResponseTrailers
}

// Properties is the bag of protocol metadata the canonical model has no dedicated field for.
// An absent key means "not applicable".
type Properties struct {
	values map[PropKey]any
}

func (p *Properties) Set(key PropKey, value any) {
	if p.values == nil {
		p.values = make(map[PropKey]any, propKeysCount)
	}

	p.values[key] = value
}

func (p *Properties) Get(key PropKey) (value any, found bool) {
	value, found = p.values[key]
	return value, found
}

func (p *Properties) Has(key PropKey) bool {
	_, found := p.values[key]
	return found
}

func (p *Properties) Len() int {
	return len(p.values)
}

func (p *Properties) Bool(key PropKey) (value, found bool) {
	value, found = p.values[key].(bool)
	return value, found
}

func (p *Properties) Int(key PropKey) (value int, found bool) {
	value, found = p.values[key].(int)
	return value, found
}

func (p *Properties) Int16(key PropKey) (value int16, found bool) {
	value, found = p.values[key].(int16)
	return value, found
}

func (p *Properties) Fields(key PropKey) (fields []kv.Pair, found bool) {
	fields, found = p.values[key].([]kv.Pair)
	return fields, found
}

func (p *Properties) Error(key PropKey) (err error, found bool) {
	err, found = p.values[key].(error)
	return err, found
}

// All iterates over the present keys in their declaration order.
func (p *Properties) All() iter.Seq2[PropKey, any] {
	return func(yield func(PropKey, any) bool) {
		for key := PropKey(1); key <= propKeysCount; key++ {
			value, found := p.values[key]
			if found && !yield(key, value) {
				return
			}
		}
	}
}
