package restflight

import (
	"sync"

	"github.com/restflight/restflight/pkg/kind"
)

// completionBarrier synchronizes the four parallel content-kind
// interpretations of a single call into one aggregate outcome. The barrier is
// fixed-size, parameterized by the enumerated kind set: every call pays for
// four interpretations regardless of which kinds its handlers target.
//
// Aggregation is incremental and order-sensitive: the first outcome is stored
// unconditionally, a later success replaces a stored failure, nothing else
// replaces anything. The net effect is that the aggregate is success when any
// interpretation succeeded, otherwise the first-arrived failure.
type completionBarrier struct {
	mu        sync.Mutex
	remaining int
	stored    Outcome
	hasStored bool
	fire      func(Outcome)
}

func newCompletionBarrier(fire func(Outcome)) *completionBarrier {
	return &completionBarrier{remaining: len(kind.All()), fire: fire}
}

// report feeds one interpretation's outcome into the barrier. The fourth
// report fires the aggregate, exactly once. Safe under concurrent reports.
func (b *completionBarrier) report(o Outcome) {
	b.mu.Lock()
	if b.remaining == 0 {
		b.mu.Unlock()
		return
	}

	switch {
	case !b.hasStored:
		b.stored = o
		b.hasStored = true
	case o.IsSuccess() && b.stored.IsFailure():
		b.stored = o
	}

	b.remaining--
	fired := b.remaining == 0
	aggregate := b.stored
	b.mu.Unlock()

	if fired {
		b.fire(aggregate)
	}
}
