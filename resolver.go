package restflight

import (
	"github.com/sirupsen/logrus"

	"github.com/restflight/restflight/pkg/kind"
)

// resolver is the per-interpretation decision logic: given one interpreted
// response and the call it belongs to, it computes an outcome and invokes the
// matching handlers. One resolver instance serves a whole service; it carries
// no per-call state.
type resolver struct {
	// interceptors are service-level interceptors, consulted before the
	// call's own.
	interceptors []Interceptor

	// isValidation classifies transport errors: validation-only errors carry
	// a body still worth constructing.
	isValidation func(error) bool

	// capture extracts configured values from a successfully resolved body.
	// Nil when the service has no capture storage.
	capture func(c *Call, body []byte) error

	logger logrus.FieldLogger
}

// resolve computes the outcome of one interpreted response. Invoked once per
// interpreted kind per call, independently.
//
// Decision order: pure transport failure, interceptor veto, handler matching.
// With no matching handler a transport error resolves to failure and a clean
// exchange resolves to silent success: nobody wanted this status and kind
// combination and the transport saw nothing wrong. With matching handlers a
// genuine (non validation-only) transport error fails before any handler
// runs; otherwise handlers fire in registration order and the first
// construction error stops the iteration.
func (r resolver) resolve(c *Call, in InterpretedResponse) Outcome {
	if in.Response == nil {
		return r.fail(c, Outcome{Reason: ReasonUnreachable, TransportErr: in.TransportErr})
	}

	for _, interceptor := range r.allInterceptors(c) {
		if !interceptor.Allow(c, in.Response.StatusCode, in.Response.Header, in.Body) {
			r.logger.WithFields(logrus.Fields{
				"url":    c.request.URL,
				"status": in.Response.StatusCode,
				"kind":   in.Kind,
			}).Debug("interceptor vetoed response processing")

			return r.fail(c, Outcome{Reason: ReasonSkipped, Response: in.Response, Body: in.Body})
		}
	}

	var matching []Handler
	for _, h := range c.handlers {
		if h.matches(in.Response.StatusCode, in.Kind) {
			matching = append(matching, h)
		}
	}

	if len(matching) == 0 {
		if in.TransportErr != nil {
			return r.fail(c, Outcome{
				Reason:       ReasonHTTPError,
				Response:     in.Response,
				TransportErr: in.TransportErr,
				Body:         in.Body,
			})
		}

		return Success()
	}

	if in.TransportErr != nil && !r.isValidation(in.TransportErr) {
		return r.fail(c, Outcome{
			Reason:       ReasonHTTPError,
			Response:     in.Response,
			TransportErr: in.TransportErr,
			Body:         in.Body,
		})
	}

	for _, h := range matching {
		constructed, err := h.Construct(in.Response.StatusCode, in.Response.Header, in.Body)
		if err != nil {
			return r.fail(c, Outcome{
				Reason:       ReasonDeserialization,
				Response:     in.Response,
				TransportErr: err,
				Body:         in.Body,
			})
		}

		h.OnResponse(constructed)
	}

	return r.resolveCaptures(c, in)
}

// resolveCaptures runs the call's capture rules over a successfully resolved
// body. Captures ride on the Data kind: it carries the untouched raw bytes.
func (r resolver) resolveCaptures(c *Call, in InterpretedResponse) Outcome {
	if r.capture == nil || len(c.captures) == 0 || in.Kind != kind.Data || in.TransportErr != nil {
		return Success()
	}

	if err := r.capture(c, in.Body); err != nil {
		return r.fail(c, Outcome{
			Reason:       ReasonDeserialization,
			Response:     in.Response,
			TransportErr: err,
			Body:         in.Body,
		})
	}

	return Success()
}

// fail reports o to the call's error sink and returns it.
func (r resolver) fail(c *Call, o Outcome) Outcome {
	reportFailure(c, o)
	return o
}

func (r resolver) allInterceptors(c *Call) []Interceptor {
	if len(r.interceptors) == 0 {
		return c.interceptors
	}

	all := make([]Interceptor, 0, len(r.interceptors)+len(c.interceptors))
	all = append(all, r.interceptors...)
	all = append(all, c.interceptors...)

	return all
}

// reportFailure delivers o to the call's error sink on the call's completion
// queue. Fire and forget.
func reportFailure(c *Call, o Outcome) {
	if c.onError == nil {
		return
	}

	c.completionQueue.Dispatch(func() { c.onError(o) })
}
