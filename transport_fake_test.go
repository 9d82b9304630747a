package restflight

import (
	"context"
	"errors"
	"sync"

	"github.com/restflight/restflight/pkg/kind"
	"github.com/restflight/restflight/pkg/transport"
)

var (
	errFakeValidation = errors.New("fake unexpected status")
	errFakeNetwork    = errors.New("fake connection refused")
)

// fakeExchange scripts how the fake transport responds to one URL.
type fakeExchange struct {
	buildErr    error
	unreachable bool
	status      int
	body        []byte

	// errs attaches per-kind transport errors to otherwise received deliveries.
	errs map[kind.Kind]error

	// hold, when set, makes deliveries wait until the channel closes or the
	// exchange is cancelled.
	hold chan struct{}
}

// fakeTransport is an in-memory Transport scripted per URL. Exchanges without
// a hold channel deliver synchronously from Start.
type fakeTransport struct {
	mu        sync.Mutex
	exchanges map[string]*fakeExchange
	handles   map[*transport.Handle]*fakeExchange
	urls      map[*transport.Handle]string
	cancels   map[*transport.Handle]chan struct{}
	built     []string
	started   []string
	cancelled int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		exchanges: map[string]*fakeExchange{},
		handles:   map[*transport.Handle]*fakeExchange{},
		urls:      map[*transport.Handle]string{},
		cancels:   map[*transport.Handle]chan struct{}{},
	}
}

func (f *fakeTransport) respond(url string, ex *fakeExchange) {
	f.mu.Lock()
	f.exchanges[url] = ex
	f.mu.Unlock()
}

func (f *fakeTransport) Build(r transport.Request, onReady func(*transport.Handle), onFail func(error)) {
	f.mu.Lock()
	ex := f.exchanges[r.URL]
	f.built = append(f.built, r.URL)
	f.mu.Unlock()

	if ex == nil {
		ex = &fakeExchange{status: 200}
	}

	if ex.buildErr != nil {
		onFail(ex.buildErr)
		return
	}

	h := &transport.Handle{}

	f.mu.Lock()
	f.handles[h] = ex
	f.urls[h] = r.URL
	f.cancels[h] = make(chan struct{})
	f.mu.Unlock()

	onReady(h)
}

func (f *fakeTransport) Start(h *transport.Handle, each func(transport.Delivery), progress func(transport.Progress)) {
	f.mu.Lock()
	ex := f.handles[h]
	cancel := f.cancels[h]
	f.started = append(f.started, f.urls[h])
	f.mu.Unlock()

	deliver := func() {
		cancelled := false

		if ex.hold != nil {
			select {
			case <-ex.hold:
			case <-cancel:
				cancelled = true
			}
		} else {
			select {
			case <-cancel:
				cancelled = true
			default:
			}
		}

		for _, k := range kind.All() {
			d := transport.Delivery{Kind: k}

			switch {
			case cancelled:
				d.Err = context.Canceled
			case ex.unreachable:
				d.Err = errFakeNetwork
			default:
				d.Received = true
				d.Status = ex.status
				if k != kind.Empty {
					d.Body = ex.body
				}
				if ex.errs != nil {
					d.Err = ex.errs[k]
				}
			}

			each(d)
		}
	}

	if ex.hold != nil {
		go deliver()
		return
	}

	deliver()
}

func (f *fakeTransport) Cancel(h *transport.Handle) {
	f.mu.Lock()
	ch := f.cancels[h]
	delete(f.cancels, h)
	f.cancelled++
	f.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

func (f *fakeTransport) IsValidationError(err error) bool {
	return errors.Is(err, errFakeValidation)
}

func (f *fakeTransport) builtURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.built...)
}

func (f *fakeTransport) startedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.started...)
}

func (f *fakeTransport) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancelled
}

// outcomeRecorder collects outcomes delivered from racing callbacks.
type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *outcomeRecorder) record(o Outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *outcomeRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Outcome(nil), r.outcomes...)
}
