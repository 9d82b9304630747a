package restflight

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/restflight/restflight/pkg/queue"
)

const (
	modeParallel policyMode = iota
	modeSequential
)

type policyMode int

// Policy describes how a batch of calls is scheduled and how per-call
// failures affect the batch result.
type Policy struct {
	mode policyMode

	// ignoreFailures switches from fail-fast to best-effort: per-call
	// failures no longer decide the batch result.
	ignoreFailures bool
}

// ParallelPolicy schedules all calls of a batch concurrently.
func ParallelPolicy(ignoreFailures bool) Policy {
	return Policy{mode: modeParallel, ignoreFailures: ignoreFailures}
}

// SequentialPolicy processes calls strictly in submission order.
func SequentialPolicy(ignoreFailures bool) Policy {
	return Policy{mode: modeSequential, ignoreFailures: ignoreFailures}
}

// Execute runs calls under given policy and delivers the single batch result
// through done on q. Execute returns immediately; an empty batch delivers
// success without scheduling any transport work.
func (s *Service) Execute(calls []*Call, p Policy, q queue.Queue, done func(Outcome)) {
	s.logger.WithFields(logrus.Fields{
		"calls":           len(calls),
		"parallel":        p.mode == modeParallel,
		"ignore_failures": p.ignoreFailures,
	}).Debug("batch submitted")

	if len(calls) == 0 {
		q.Dispatch(func() { done(Success()) })
		return
	}

	if p.mode == modeParallel {
		newParallelBatch(s, calls, p, q, done).run()
		return
	}

	newSequentialBatch(s, calls, p, q, done).run()
}

// parallelBatch owns the mutable aggregation state of one parallel batch: the
// outstanding-call counter and the first-captured-failure slot. Callbacks
// registered on wrappers hold only a reference back to this state.
type parallelBatch struct {
	s     *Service
	calls []*Call
	p     Policy
	q     queue.Queue
	done  func(Outcome)

	mu        sync.Mutex
	remaining int
	captured  bool
	failure   Outcome
	wrappers  []*RequestWrapper
}

func newParallelBatch(s *Service, calls []*Call, p Policy, q queue.Queue, done func(Outcome)) *parallelBatch {
	return &parallelBatch{s: s, calls: calls, p: p, q: q, done: done, remaining: len(calls)}
}

// run builds a wrapper per call. All wrappers are registered before any build
// begins, so a fail-fast cancellation sweep always sees the whole batch.
func (b *parallelBatch) run() {
	begins := make([]func(), 0, len(b.calls))

	for _, c := range b.calls {
		w, begin := b.s.prepareCall(c, b.callFinished)
		w.OnReady(w.Start)

		b.wrappers = append(b.wrappers, w)
		begins = append(begins, begin)
	}

	for _, begin := range begins {
		begin()
	}
}

// callFinished consumes one call's aggregate outcome. Under fail-fast the
// first failure is captured as the batch result and every sibling wrapper is
// cancelled, best effort: an already-completed sibling stays completed and
// its outcome still counts. The last completion delivers the batch result.
func (b *parallelBatch) callFinished(o Outcome) {
	var sweep []*RequestWrapper

	b.mu.Lock()
	if o.IsFailure() && !b.p.ignoreFailures && !b.captured {
		b.captured = true
		b.failure = o
		sweep = b.wrappers
	}

	b.remaining--
	finished := b.remaining == 0

	result := Success()
	if b.captured {
		result = b.failure
	}
	b.mu.Unlock()

	if sweep != nil {
		b.s.logger.WithField("reason", o.Reason).Debug("cancelling remaining calls of failing batch")

		// The finished call's wrapper is already marked completed, its
		// Cancel is a no-op.
		for _, w := range sweep {
			w.Cancel()
		}
	}

	if finished {
		b.q.Dispatch(func() { b.done(result) })
	}
}

// sequentialBatch advances through calls one at a time, driven by completion
// callbacks. The advance loop is iterative: a completion arriving while
// advance is already on the stack only records state and returns, so call
// stacks stay flat for arbitrarily long batches.
type sequentialBatch struct {
	s    *Service
	p    Policy
	q    queue.Queue
	done func(Outcome)

	mu        sync.Mutex
	calls     []*Call
	idx       int
	inFlight  bool
	arrived   *Outcome
	terminal  bool
	advancing bool
}

func newSequentialBatch(s *Service, calls []*Call, p Policy, q queue.Queue, done func(Outcome)) *sequentialBatch {
	return &sequentialBatch{s: s, calls: calls, p: p, q: q, done: done}
}

func (b *sequentialBatch) run() {
	b.advance()
}

// callFinished records the in-flight call's aggregate outcome and resumes the
// advance loop.
func (b *sequentialBatch) callFinished(o Outcome) {
	b.mu.Lock()
	b.inFlight = false
	b.arrived = &o
	b.mu.Unlock()

	b.advance()
}

// advance consumes arrived outcomes and starts next calls until the batch is
// waiting on an exchange or has finished. Only one advance loop runs at a
// time; reentrant invocations return immediately after callFinished has
// recorded its state.
func (b *sequentialBatch) advance() {
	b.mu.Lock()
	if b.advancing || b.terminal {
		b.mu.Unlock()
		return
	}
	b.advancing = true

	for {
		if b.arrived != nil {
			o := *b.arrived
			b.arrived = nil

			if o.IsFailure() && !b.p.ignoreFailures {
				b.finish(o)
				return
			}
		}

		if b.inFlight {
			break
		}

		if b.idx == len(b.calls) {
			b.finish(Success())
			return
		}

		c := b.calls[b.idx]
		b.idx++
		b.inFlight = true
		b.mu.Unlock()

		w, begin := b.s.prepareCall(c, b.callFinished)
		w.OnReady(w.Start)
		begin()

		b.mu.Lock()
	}

	b.advancing = false
	b.mu.Unlock()
}

// finish marks the batch terminal and delivers the result. Called with the
// lock held; releases it.
func (b *sequentialBatch) finish(o Outcome) {
	b.terminal = true
	b.advancing = false
	b.mu.Unlock()

	b.q.Dispatch(func() { b.done(o) })
}
