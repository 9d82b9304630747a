// Package transport performs actual HTTP exchanges on behalf of the
// orchestration engine and interprets every response under the fixed set of
// content kinds.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/moul/http2curl"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/restflight/restflight/pkg/kind"
)

// ErrUnexpectedStatus occurs when response status code lies outside the accepted set.
// It is a validation-only error: the response body was still delivered and is
// worth interpreting, API error payloads included.
var ErrUnexpectedStatus = errors.New("response status code outside accepted set")

// ErrInterpretation occurs when response body cannot be rendered under requested content kind.
var ErrInterpretation = errors.New("response body cannot be interpreted")

// ErrEncoding occurs when request body cannot be encoded.
var ErrEncoding = errors.New("request body encoding")

// RequestDoer describes ability to make HTTP(s) requests.
type RequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Debugger describes ability to print debugging info.
type Debugger interface {
	// Print prints provided info.
	Print(info string)

	// IsOn tells whether debugging mode is activated.
	IsOn() bool
}

// Progress describes how much of response body has been read so far.
type Progress struct {
	// Read is number of body bytes read so far.
	Read int64

	// Total is number of bytes announced in Content-Length, -1 when unknown.
	Total int64
}

// Delivery is one content-kind view of a single HTTP exchange.
// Exactly four deliveries are produced per started request, one per kind.
type Delivery struct {
	// Kind tells under which content kind the response was interpreted.
	Kind kind.Kind

	// Received tells whether any HTTP exchange occurred at all.
	Received bool

	// Status is response status code, valid only when Received.
	Status int

	// Header holds response headers, valid only when Received.
	Header http.Header

	// Body is kind-specific rendition of response body; nil for kind.Empty.
	Body []byte

	// Err holds transport-level error associated with this interpretation.
	Err error
}

// Handle is a started or startable transport request. Owned by the engine,
// opaque to callers.
type Handle struct {
	req      *http.Request
	cancel   func()
	accepted []int
}

// cachedResponse is a memoized exchange stored in the response cache.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// Service is entity that has ability to build, start and cancel HTTP requests.
type Service struct {
	doer     RequestDoer
	logger   logrus.FieldLogger
	debugger Debugger

	// respCache memoizes exchanges of safe (GET/HEAD) requests.
	respCache *gocache.Cache

	// limiter throttles outgoing requests.
	limiter *rate.Limiter
}

// NewService returns *Service sending requests through provided RequestDoer.
func NewService(doer RequestDoer) *Service {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return &Service{doer: doer, logger: l}
}

// NewDefaultService returns *Service with default *http.Client.
func NewDefaultService() *Service {
	return NewService(&http.Client{Timeout: 30 * time.Second})
}

// SetLogger injects custom logger.
func (s *Service) SetLogger(l logrus.FieldLogger) {
	s.logger = l
}

// SetDebugger injects custom debugger.
func (s *Service) SetDebugger(d Debugger) {
	s.debugger = d
}

// EnableResponseCache turns on memoization of safe (GET/HEAD) exchanges for given TTL.
func (s *Service) EnableResponseCache(ttl time.Duration) {
	s.respCache = gocache.New(ttl, 2*ttl)
}

// SetRateLimit throttles outgoing requests to provided limit.
func (s *Service) SetRateLimit(limit rate.Limit, burst int) {
	s.limiter = rate.NewLimiter(limit, burst)
}

// IsValidationError tells whether err is a validation-only transport error:
// the status code was unexpected but a response body was still delivered.
func (s *Service) IsValidationError(err error) bool {
	return errors.Is(err, ErrUnexpectedStatus)
}

// Cancel aborts in-flight request behind h. Idempotent, safe to invoke after
// the exchange has already finished.
func (s *Service) Cancel(h *Handle) {
	if h == nil || h.cancel == nil {
		return
	}

	h.cancel()
}

// Start performs the exchange behind h and fans the response out into the four
// content-kind deliveries. Deliveries arrive concurrently, each on its own
// goroutine. Start returns immediately.
func (s *Service) Start(h *Handle, each func(Delivery), progress func(Progress)) {
	go s.run(h, each, progress)
}

func (s *Service) run(h *Handle, each func(Delivery), progress func(Progress)) {
	if s.debugger != nil && s.debugger.IsOn() {
		if command, err := http2curl.GetCurlCommand(h.req); err == nil {
			s.debugger.Print(command.String())
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(h.req.Context()); err != nil {
			s.deliverUnreachable(each, err)
			return
		}
	}

	key := h.req.Method + " " + h.req.URL.String()
	if s.respCache != nil && isSafeMethod(h.req.Method) {
		if v, ok := s.respCache.Get(key); ok {
			cached := v.(cachedResponse)
			s.logger.WithField("url", h.req.URL.String()).Debug("serving response from cache")
			s.deliver(h, each, cached.status, cached.header, cached.body)
			return
		}
	}

	started := time.Now()
	res, err := s.doer.Do(h.req)
	if err != nil {
		s.logger.WithError(err).WithField("url", h.req.URL.String()).Debug("exchange failed")
		s.deliverUnreachable(each, err)
		return
	}

	raw, readErr := readBody(res, progress)
	_ = res.Body.Close()

	s.logger.WithFields(logrus.Fields{
		"method":   h.req.Method,
		"url":      h.req.URL.String(),
		"status":   res.StatusCode,
		"duration": time.Since(started),
	}).Debug("response received")

	if s.debugger != nil && s.debugger.IsOn() {
		s.debugger.Print(string(raw))
	}

	if readErr != nil {
		// The exchange occurred, so status and headers are trustworthy, but no
		// interpretation can be made of a partially read body.
		rErr := fmt.Errorf("%w: %s", ErrInterpretation, readErr.Error())
		for _, k := range kind.All() {
			k := k
			go each(Delivery{Kind: k, Received: true, Status: res.StatusCode, Header: res.Header, Err: rErr})
		}

		return
	}

	if s.respCache != nil && isSafeMethod(h.req.Method) && res.StatusCode < 300 {
		s.respCache.Set(key, cachedResponse{status: res.StatusCode, header: res.Header, body: raw}, gocache.DefaultExpiration)
	}

	s.deliver(h, each, res.StatusCode, res.Header, raw)
}

// deliver renders one physical response under all four content kinds.
func (s *Service) deliver(h *Handle, each func(Delivery), status int, header http.Header, raw []byte) {
	var validationErr error
	if len(h.accepted) > 0 && !statusIn(h.accepted, status) {
		validationErr = fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	jsonErr := validationErr
	if !gjson.ValidBytes(raw) {
		jsonErr = fmt.Errorf("%w: not a valid JSON document", ErrInterpretation)
	}

	textErr := validationErr
	if !utf8.Valid(raw) {
		textErr = fmt.Errorf("%w: not a valid UTF-8 text", ErrInterpretation)
	}

	deliveries := []Delivery{
		{Kind: kind.Data, Received: true, Status: status, Header: header, Body: raw, Err: validationErr},
		{Kind: kind.JSON, Received: true, Status: status, Header: header, Body: raw, Err: jsonErr},
		{Kind: kind.String, Received: true, Status: status, Header: header, Body: raw, Err: textErr},
		{Kind: kind.Empty, Received: true, Status: status, Header: header, Err: validationErr},
	}

	for _, d := range deliveries {
		d := d
		go each(d)
	}
}

// deliverUnreachable reports a pure transport failure: no HTTP exchange occurred.
func (s *Service) deliverUnreachable(each func(Delivery), err error) {
	for _, k := range kind.All() {
		k := k
		go each(Delivery{Kind: k, Err: err})
	}
}

// readBody reads whole response body, reporting read progress along the way.
func readBody(res *http.Response, progress func(Progress)) ([]byte, error) {
	var raw []byte
	var read int64

	buff := make([]byte, 32*1024)
	for {
		n, err := res.Body.Read(buff)
		if n > 0 {
			raw = append(raw, buff[:n]...)
			read += int64(n)

			if progress != nil {
				progress(Progress{Read: read, Total: res.ContentLength})
			}
		}

		if err == io.EOF {
			return raw, nil
		}

		if err != nil {
			return raw, err
		}
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func statusIn(accepted []int, status int) bool {
	for _, code := range accepted {
		if code == status {
			return true
		}
	}

	return false
}
