package restflight

import (
	"sync"

	"github.com/restflight/restflight/pkg/transport"
)

const (
	statePending wrapperState = iota
	stateReady
	stateFailed
)

type wrapperState int

// RequestWrapper is a deferred handle around a not-yet-started transport
// request. Building a request may itself fail asynchronously (multipart body
// encoding reads files before any network activity), so the wrapper decouples
// "request built" from "request started".
//
// States: Pending (default) -> Ready or Failed. A wrapper never transitions
// back. Wrappers are owned exclusively by the batch executor during a batch's
// lifetime.
type RequestWrapper struct {
	mu    sync.Mutex
	state wrapperState

	handle  *transport.Handle
	outcome Outcome

	readyFn func()
	failFn  func(Outcome)

	// begin and abort bridge the wrapper to the transport collaborator.
	begin func(*transport.Handle)
	abort func(*transport.Handle)

	started   bool
	completed bool

	// cancelDeferred remembers a Cancel issued while still Pending.
	cancelDeferred bool
}

func newRequestWrapper(begin, abort func(*transport.Handle)) *RequestWrapper {
	return &RequestWrapper{begin: begin, abort: abort}
}

// OnReady registers the single callback invoked when the wrapper becomes
// Ready. Registration after the transition invokes fn immediately.
func (w *RequestWrapper) OnReady(fn func()) {
	w.mu.Lock()
	if w.state != stateReady {
		w.readyFn = fn
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	fn()
}

// OnFail registers the single callback invoked when the wrapper fails to
// build. Registration after the transition invokes fn immediately.
func (w *RequestWrapper) OnFail(fn func(Outcome)) {
	w.mu.Lock()
	if w.state != stateFailed {
		w.failFn = fn
		w.mu.Unlock()
		return
	}
	o := w.outcome
	w.mu.Unlock()

	fn(o)
}

// Resolve transitions Pending -> Ready with the built transport handle.
// Subsequent transitions are ignored. A Cancel issued while the wrapper was
// still Pending is applied to the handle before the ready callback runs.
func (w *RequestWrapper) Resolve(h *transport.Handle) {
	w.mu.Lock()
	if w.state != statePending {
		w.mu.Unlock()
		return
	}

	w.state = stateReady
	w.handle = h
	fn := w.readyFn
	deferred := w.cancelDeferred
	w.mu.Unlock()

	if deferred {
		w.abort(h)
	}

	if fn != nil {
		fn()
	}
}

// Fail transitions Pending -> Failed carrying the build-time outcome.
// Subsequent transitions are ignored.
func (w *RequestWrapper) Fail(o Outcome) {
	w.mu.Lock()
	if w.state != statePending {
		w.mu.Unlock()
		return
	}

	w.state = stateFailed
	w.outcome = o
	fn := w.failFn
	w.mu.Unlock()

	if fn != nil {
		fn(o)
	}
}

// Start begins the exchange behind the wrapper. Valid only from Ready; a
// second Start is ignored.
func (w *RequestWrapper) Start() {
	w.mu.Lock()
	if w.state != stateReady || w.started || w.completed {
		w.mu.Unlock()
		return
	}

	w.started = true
	h := w.handle
	w.mu.Unlock()

	w.begin(h)
}

// Cancel aborts the exchange behind the wrapper. Idempotent; a no-op once the
// call has completed. Cancelling a still-Pending wrapper takes effect the
// moment it resolves.
func (w *RequestWrapper) Cancel() {
	w.mu.Lock()
	if w.completed || w.state == stateFailed {
		w.mu.Unlock()
		return
	}

	if w.state == statePending {
		w.cancelDeferred = true
		w.mu.Unlock()
		return
	}

	h := w.handle
	w.mu.Unlock()

	w.abort(h)
}

// markCompleted records that the call behind the wrapper has delivered its
// aggregate outcome; every later Cancel becomes a no-op.
func (w *RequestWrapper) markCompleted() {
	w.mu.Lock()
	w.completed = true
	w.mu.Unlock()
}
