package restflight

import (
	"io"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/restflight/restflight/pkg/cache"
	"github.com/restflight/restflight/pkg/osutils"
	"github.com/restflight/restflight/pkg/pathfinder"
	"github.com/restflight/restflight/pkg/template"
	"github.com/restflight/restflight/pkg/transport"
)

// Transport describes the narrow collaborator performing actual HTTP work on
// behalf of the engine.
type Transport interface {
	// Build constructs a cancellable request; exactly one of onReady/onFail
	// fires, possibly asynchronously.
	Build(r transport.Request, onReady func(*transport.Handle), onFail func(error))

	// Start performs the exchange and fans the response out into the four
	// content-kind deliveries.
	Start(h *transport.Handle, each func(transport.Delivery), progress func(transport.Progress))

	// Cancel aborts the in-flight exchange behind h. Idempotent.
	Cancel(h *transport.Handle)

	// IsValidationError tells whether err is a validation-only transport
	// error: unexpected status code, body still delivered.
	IsValidationError(err error) bool
}

// Service is entity that has ability to execute batches of HTTP calls and
// resolve their responses.
type Service struct {
	// Interceptors are consulted for every call of every batch, before the
	// call's own interceptors. Mutable between batches, read-only during one.
	Interceptors []Interceptor

	transport Transport
	cache     cache.Cache
	templates template.Engine
	logger    logrus.FieldLogger

	jsonFinder pathfinder.PathFinder
	yamlFinder pathfinder.PathFinder
	xmlFinder  pathfinder.PathFinder

	fileRecognizer osutils.OSFileRecognizer
}

// NewService returns *Service with provided collaborators. Pathfinders and the
// multipart file recognizer start with defaults, replaceable through setters.
func NewService(t Transport, c cache.Cache, te template.Engine) *Service {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return &Service{
		transport: t,
		cache:     c,
		templates: te,
		logger:    l,
		jsonFinder: pathfinder.NewDynamicJSONPathFinder(
			pathfinder.NewGJSONFinder(),
			pathfinder.NewOliveagleJSONFinder(),
			pathfinder.NewAntchfxJSONQueryFinder(),
		),
		yamlFinder:     pathfinder.NewGoccyGoYamlFinder(),
		xmlFinder:      pathfinder.NewAntchfxXMLFinder(),
		fileRecognizer: osutils.NewOSFileRecognizer("file://", osutils.NewFileValidator()),
	}
}

// NewDefaultService returns *Service with default HTTP transport, concurrent
// capture storage and template engine.
func NewDefaultService() *Service {
	return NewService(transport.NewDefaultService(), cache.NewConcurrentCache(), template.New())
}

// SetLogger injects custom logger.
func (s *Service) SetLogger(l logrus.FieldLogger) {
	s.logger = l
}

// SetTransport injects custom transport collaborator.
func (s *Service) SetTransport(t Transport) {
	s.transport = t
}

// SetCache injects custom capture storage.
func (s *Service) SetCache(c cache.Cache) {
	s.cache = c
}

// SetTemplateEngine injects custom template engine.
func (s *Service) SetTemplateEngine(te template.Engine) {
	s.templates = te
}

// SetJSONPathFinder injects custom JSON pathfinder used by capture rules.
func (s *Service) SetJSONPathFinder(p pathfinder.PathFinder) {
	s.jsonFinder = p
}

// SetYAMLPathFinder injects custom YAML pathfinder used by capture rules.
func (s *Service) SetYAMLPathFinder(p pathfinder.PathFinder) {
	s.yamlFinder = p
}

// SetXMLPathFinder injects custom XML pathfinder used by capture rules.
func (s *Service) SetXMLPathFinder(p pathfinder.PathFinder) {
	s.xmlFinder = p
}

// SetFileRecognizer injects custom recognizer of multipart file references.
func (s *Service) SetFileRecognizer(fr osutils.OSFileRecognizer) {
	s.fileRecognizer = fr
}

// Cache exposes the capture storage, mostly for inspection in between batches.
func (s *Service) Cache() cache.Cache {
	return s.cache
}

// prepareCall wires one call into a wrapper plus a begin function which kicks
// off the transport build. Splitting the two lets the parallel executor
// register a whole batch of wrappers before the first build starts. done
// receives the call's aggregate outcome exactly once, whether the call fails
// to build or runs to its four-way completion.
func (s *Service) prepareCall(c *Call, done func(Outcome)) (*RequestWrapper, func()) {
	var w *RequestWrapper

	var once sync.Once
	finish := func(o Outcome) {
		once.Do(func() {
			w.markCompleted()
			done(o)
		})
	}

	barrier := newCompletionBarrier(func(o Outcome) {
		c.completionQueue.Dispatch(func() { finish(o) })
	})

	begin := func(h *transport.Handle) {
		res := s.newResolver()
		s.transport.Start(h, func(d transport.Delivery) {
			barrier.report(res.resolve(c, interpretDelivery(d)))
		}, c.onProgress)
	}

	w = newRequestWrapper(begin, s.transport.Cancel)

	buildFailed := func(o Outcome) {
		reportFailure(c, o)
		w.Fail(o)
	}

	w.OnFail(func(o Outcome) {
		c.completionQueue.Dispatch(func() { finish(o) })
	})

	build := func() {
		req, err := s.renderRequest(c)
		if err != nil {
			buildFailed(Outcome{Reason: ReasonEncoding, TransportErr: err})
			return
		}

		s.transport.Build(req, w.Resolve, func(err error) {
			buildFailed(Outcome{Reason: ReasonEncoding, TransportErr: err})
		})
	}

	return w, build
}

func (s *Service) newResolver() resolver {
	r := resolver{
		interceptors: s.Interceptors,
		isValidation: s.transport.IsValidationError,
		logger:       s.logger,
	}

	if s.cache != nil {
		r.capture = s.applyCaptures
	}

	return r
}

// renderRequest resolves template values of the call's request against the
// capture storage. Rendering happens at call start, not at build time, so
// sequential batches see values captured by their earlier calls.
func (s *Service) renderRequest(c *Call) (transport.Request, error) {
	req := c.request
	if s.templates == nil || s.cache == nil {
		return req, nil
	}

	storage := s.cache.All()

	var err error
	if req.URL, err = s.templates.Replace(req.URL, storage); err != nil {
		return req, err
	}

	if len(req.Header) > 0 {
		header := req.Header.Clone()
		for name, values := range header {
			for i, value := range values {
				if header[name][i], err = s.templates.Replace(value, storage); err != nil {
					return req, err
				}
			}
		}
		req.Header = header
	}

	if len(req.Params) > 0 {
		params := make(url.Values, len(req.Params))
		for name, values := range req.Params {
			rendered := make([]string, len(values))
			for i, value := range values {
				if rendered[i], err = s.templates.Replace(value, storage); err != nil {
					return req, err
				}
			}
			params[name] = rendered
		}
		req.Params = params
	}

	if body, ok := req.Body.(string); ok {
		if req.Body, err = s.templates.Replace(body, storage); err != nil {
			return req, err
		}
	}

	return req, nil
}

// interpretDelivery translates one transport delivery into the resolver's view.
func interpretDelivery(d transport.Delivery) InterpretedResponse {
	in := InterpretedResponse{Kind: d.Kind, TransportErr: d.Err, Body: d.Body}
	if d.Received {
		in.Response = &Response{StatusCode: d.Status, Header: d.Header}
	}

	return in
}
