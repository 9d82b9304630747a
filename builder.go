package restflight

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/restflight/restflight/pkg/httpctx"
	"github.com/restflight/restflight/pkg/kind"
	"github.com/restflight/restflight/pkg/queue"
	"github.com/restflight/restflight/pkg/transport"
)

// CallBuilder assembles one Call step by step. Obtain through Service.NewCall;
// Build validates the description and rejects malformed ones with
// ErrCallValidation, so execution never sees an unrecognized call shape.
type CallBuilder struct {
	s *Service

	request         transport.Request
	handlers        []Handler
	interceptors    []Interceptor
	captures        []CaptureRule
	onError         func(Outcome)
	onProgress      func(transport.Progress)
	completionQueue queue.Queue
}

// NewCall starts building a call for given method and target URL. The URL may
// carry template values resolved against the capture storage at call start.
func (s *Service) NewCall(method, targetURL string) *CallBuilder {
	return &CallBuilder{
		s: s,
		request: transport.Request{
			Method: method,
			URL:    targetURL,
			Header: http.Header{},
			Params: url.Values{},
		},
	}
}

// WithHeader adds one request header.
func (b *CallBuilder) WithHeader(name, value string) *CallBuilder {
	b.request.Header.Add(name, value)
	return b
}

// WithParam adds one request parameter. Placement follows the encoding: query
// string by default, request body for form and multipart encodings.
func (b *CallBuilder) WithParam(name, value string) *CallBuilder {
	b.request.Params.Add(name, value)
	return b
}

// WithFormField adds one form field. Values carrying a file:// reference to an
// existing local file become multipart file parts instead of plain fields.
func (b *CallBuilder) WithFormField(name, value string) *CallBuilder {
	if ref, ok := b.s.fileRecognizer.Recognize(value); ok && ref.Reference.Value != "" {
		return b.WithFilePart(name, ref.Reference.Value)
	}

	return b.WithParam(name, value)
}

// WithFilePart attaches a local file under given multipart field name.
func (b *CallBuilder) WithFilePart(fieldName, path string) *CallBuilder {
	b.request.FileParts = append(b.request.FileParts, transport.FilePart{FieldName: fieldName, Path: path})
	return b
}

// WithEncoding sets request body encoding.
func (b *CallBuilder) WithEncoding(e transport.Encoding) *CallBuilder {
	b.request.Encoding = e
	return b
}

// WithBody sets request body. Raw []byte and string pass through; anything
// else is serialized according to the encoding. String bodies may carry
// template values.
func (b *CallBuilder) WithBody(body any) *CallBuilder {
	b.request.Body = body
	return b
}

// WithAcceptedStatusCodes narrows statuses passing transport validation.
// Statuses outside the set surface as validation-only transport errors.
func (b *CallBuilder) WithAcceptedStatusCodes(codes ...int) *CallBuilder {
	b.request.AcceptedStatusCodes = append(b.request.AcceptedStatusCodes, codes...)
	return b
}

// WithHandler registers response handlers, in order.
func (b *CallBuilder) WithHandler(handlers ...Handler) *CallBuilder {
	b.handlers = append(b.handlers, handlers...)
	return b
}

// WithInterceptor registers call-level interceptors, consulted after the
// service-level ones.
func (b *CallBuilder) WithInterceptor(interceptors ...Interceptor) *CallBuilder {
	b.interceptors = append(b.interceptors, interceptors...)
	return b
}

// WithCapture registers capture rules extracting values from resolved bodies.
func (b *CallBuilder) WithCapture(rules ...CaptureRule) *CallBuilder {
	b.captures = append(b.captures, rules...)
	return b
}

// WithErrorSink sets the fire-and-forget failure side channel.
func (b *CallBuilder) WithErrorSink(fn func(Outcome)) *CallBuilder {
	b.onError = fn
	return b
}

// WithProgressSink sets receiver of body read progress.
func (b *CallBuilder) WithProgressSink(fn func(transport.Progress)) *CallBuilder {
	b.onProgress = fn
	return b
}

// WithQueue sets the completion queue the call's outcome and error sink
// callbacks are delivered on. ImmediateQueue when unset.
func (b *CallBuilder) WithQueue(q queue.Queue) *CallBuilder {
	b.completionQueue = q
	return b
}

// Build validates the assembled description and returns an immutable Call.
func (b *CallBuilder) Build() (*Call, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	q := b.completionQueue
	if q == nil {
		q = queue.NewImmediateQueue()
	}

	return &Call{
		request:         b.request,
		handlers:        b.handlers,
		interceptors:    b.interceptors,
		captures:        b.captures,
		onError:         b.onError,
		onProgress:      b.onProgress,
		completionQueue: q,
	}, nil
}

func (b *CallBuilder) validate() error {
	if !isKnownMethod(b.request.Method) {
		return fmt.Errorf("%w: unknown HTTP method %q", ErrCallValidation, b.request.Method)
	}

	// Templated URLs are resolved at call start; only literal ones can be
	// checked here.
	if !strings.Contains(b.request.URL, "{{") {
		if err := httpctx.NewURLValidator().Validate(b.request.URL); err != nil {
			return fmt.Errorf("%w: %s", ErrCallValidation, err.Error())
		}
	}

	if !b.request.Encoding.IsKnown() {
		return fmt.Errorf("%w: unknown encoding %q", ErrCallValidation, b.request.Encoding)
	}

	for i, h := range b.handlers {
		if !isKnownKind(h.Kind) {
			return fmt.Errorf("%w: handler %d has unknown content kind %q", ErrCallValidation, i, h.Kind)
		}

		if len(h.StatusCodes) == 0 {
			return fmt.Errorf("%w: handler %d accepts no status codes", ErrCallValidation, i)
		}

		if h.Construct == nil {
			return fmt.Errorf("%w: handler %d has no constructor", ErrCallValidation, i)
		}

		if h.OnResponse == nil {
			return fmt.Errorf("%w: handler %d has no response callback", ErrCallValidation, i)
		}
	}

	for i, rule := range b.captures {
		if rule.Key == "" || rule.Expression == "" {
			return fmt.Errorf("%w: capture rule %d misses key or expression", ErrCallValidation, i)
		}

		switch rule.Source {
		case "", CaptureJSON, CaptureYAML, CaptureXML:
		default:
			return fmt.Errorf("%w: capture rule %d has unknown source %q", ErrCallValidation, i, rule.Source)
		}
	}

	return nil
}

func isKnownMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	}

	return false
}

func isKnownKind(k kind.Kind) bool {
	for _, known := range kind.All() {
		if k == known {
			return true
		}
	}

	return false
}
