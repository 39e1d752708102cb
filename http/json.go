package http

import (
	json "github.com/json-iterator/go"

	"github.com/indigo-web/interceptor/kv"
)

type jsonSide struct {
	PrimeLine string    `json:"prime_line,omitempty"`
	Fields    []kv.Pair `json:"fields,omitempty"`
	Malformed bool      `json:"malformed,omitempty"`
	Body      string    `json:"body,omitempty"`
	Encodings []string  `json:"content_encodings,omitempty"`
}

type jsonMessage struct {
	Request    *jsonSide      `json:"request,omitempty"`
	Response   *jsonSide      `json:"response,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Sender     string         `json:"sender,omitempty"`
	Secure     bool           `json:"secure"`
}

// MarshalJSON renders an inspectable view of the message. Empty sides are omitted, errors
// are represented by their text.
func (m *Message) MarshalJSON() ([]byte, error) {
	view := jsonMessage{
		Request:  newJSONSide(m.RequestHeader, m.RequestBody),
		Response: newJSONSide(m.ResponseHeader, m.ResponseBody),
		Secure:   m.Secure,
	}

	if m.Sender != nil {
		view.Sender = m.Sender.String()
	}

	if m.Props.Len() > 0 {
		view.Properties = make(map[string]any, m.Props.Len())
		for key, value := range m.Props.All() {
			if err, ok := value.(error); ok {
				value = err.Error()
			}

			view.Properties[key.String()] = value
		}
	}

	return json.ConfigCompatibleWithStandardLibrary.Marshal(view)
}

func newJSONSide(header *HeaderBlock, body *Body) *jsonSide {
	if header.Empty() && body.Empty() {
		return nil
	}

	return &jsonSide{
		PrimeLine: header.PrimeLine(),
		Fields:    header.Fields().Expose(),
		Malformed: header.Malformed(),
		Body:      body.String(),
		Encodings: body.ContentEncodings(),
	}
}
