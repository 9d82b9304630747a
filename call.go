package restflight

import (
	"net/http"

	"github.com/restflight/restflight/pkg/kind"
	"github.com/restflight/restflight/pkg/queue"
	"github.com/restflight/restflight/pkg/serializer"
	"github.com/restflight/restflight/pkg/transport"
)

// Call is immutable description of one logical network operation. Calls are
// created through CallBuilder; its validation guarantees every Call handed to
// Execute is well formed. Handler and interceptor registries are read-only for
// the duration of execution.
type Call struct {
	request      transport.Request
	handlers     []Handler
	interceptors []Interceptor
	captures     []CaptureRule

	// onError is fire-and-forget side channel receiving every failure.
	onError func(Outcome)

	// onProgress receives body read progress of the exchange.
	onProgress func(transport.Progress)

	// completionQueue is where the call's aggregate outcome is delivered.
	completionQueue queue.Queue
}

// Request returns a copy of the wire-level description behind the call.
func (c *Call) Request() transport.Request {
	return c.request
}

// Handler binds a (status set, content kind) pair to a response constructor.
// Handlers are matched, never overwritten; multiple handlers may fire for one
// resolved response.
type Handler struct {
	// StatusCodes is set of statuses this handler accepts.
	StatusCodes []int

	// Kind is content kind this handler consumes.
	Kind kind.Kind

	// Construct builds a typed response from the interpreted body.
	Construct func(status int, header http.Header, body []byte) (any, error)

	// OnResponse receives every successfully constructed response.
	OnResponse func(response any)
}

// matches tells whether handler accepts given status under given kind.
func (h Handler) matches(status int, k kind.Kind) bool {
	if h.Kind != k {
		return false
	}

	for _, code := range h.StatusCodes {
		if code == status {
			return true
		}
	}

	return false
}

// Interceptor describes ability to veto processing of a response. All
// interceptors of a call must allow; any veto blocks handler delivery.
type Interceptor interface {
	// Allow tells whether handlers may process given response.
	Allow(c *Call, status int, header http.Header, body []byte) bool
}

// InterceptorFunc adapts a plain function into an Interceptor.
type InterceptorFunc func(c *Call, status int, header http.Header, body []byte) bool

func (f InterceptorFunc) Allow(c *Call, status int, header http.Header, body []byte) bool {
	return f(c, status, header, body)
}

// InterpretedResponse is one of the four parallel content-kind views of a
// single HTTP exchange.
type InterpretedResponse struct {
	// Kind tells under which content kind the exchange was interpreted.
	Kind kind.Kind

	// Response is present only when an HTTP exchange occurred.
	Response *Response

	// TransportErr is transport-level error attached to this interpretation.
	TransportErr error

	// Body is kind-specific rendition of the response body.
	Body []byte
}

// JSONHandler returns a handler deserializing JSON bodies onto values of type T.
func JSONHandler[T any](statusCodes []int, onResponse func(T)) Handler {
	return deserializingHandler(kind.JSON, serializer.NewJSON(), statusCodes, onResponse)
}

// YAMLHandler returns a handler deserializing YAML bodies onto values of type T.
// YAML interpretation rides on the String kind, the transport has no dedicated one.
func YAMLHandler[T any](statusCodes []int, onResponse func(T)) Handler {
	return deserializingHandler(kind.String, serializer.NewYAML(), statusCodes, onResponse)
}

// XMLHandler returns a handler deserializing XML bodies onto values of type T.
func XMLHandler[T any](statusCodes []int, onResponse func(T)) Handler {
	return deserializingHandler(kind.String, serializer.NewXML(), statusCodes, onResponse)
}

// StringHandler returns a handler delivering the body as text.
func StringHandler(statusCodes []int, onResponse func(string)) Handler {
	return Handler{
		StatusCodes: statusCodes,
		Kind:        kind.String,
		Construct: func(status int, header http.Header, body []byte) (any, error) {
			return string(body), nil
		},
		OnResponse: func(response any) {
			onResponse(response.(string))
		},
	}
}

// DataHandler returns a handler delivering the raw body bytes.
func DataHandler(statusCodes []int, onResponse func([]byte)) Handler {
	return Handler{
		StatusCodes: statusCodes,
		Kind:        kind.Data,
		Construct: func(status int, header http.Header, body []byte) (any, error) {
			return body, nil
		},
		OnResponse: func(response any) {
			onResponse(response.([]byte))
		},
	}
}

// EmptyHandler returns a headers-only handler, useful for operations whose
// success is carried entirely by the status code.
func EmptyHandler(statusCodes []int, onResponse func(status int, header http.Header)) Handler {
	type statusAndHeader struct {
		status int
		header http.Header
	}

	return Handler{
		StatusCodes: statusCodes,
		Kind:        kind.Empty,
		Construct: func(status int, header http.Header, body []byte) (any, error) {
			return statusAndHeader{status: status, header: header}, nil
		},
		OnResponse: func(response any) {
			sh := response.(statusAndHeader)
			onResponse(sh.status, sh.header)
		},
	}
}

func deserializingHandler[T any](k kind.Kind, s serializer.Serializer, statusCodes []int, onResponse func(T)) Handler {
	return Handler{
		StatusCodes: statusCodes,
		Kind:        k,
		Construct: func(status int, header http.Header, body []byte) (any, error) {
			var v T
			if err := s.Deserialize(body, &v); err != nil {
				return nil, err
			}

			return v, nil
		},
		OnResponse: func(response any) {
			onResponse(response.(T))
		},
	}
}
