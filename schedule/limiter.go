package schedule

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"market-scanner/utils"
)

const (
	widenFactor = 1.5
	maxWiden    = 8.0
)

// DomainBudget bounds what one target domain will tolerate: how many
// requests may be in flight at once and how far apart dispatches must be.
type DomainBudget struct {
	MaxConcurrent int
	MinDelay      time.Duration
	MaxDelay      time.Duration
}

// Limiter sequences work per target domain. It guarantees that a domain
// never has more than its budget of concurrent in-flight units and that
// consecutive dispatches to a domain are separated by a randomized delay.
// Repeated failures widen the delay floor multiplicatively; successes
// shrink it back. Cross-domain ordering is deliberately unspecified.
type Limiter struct {
	log      *utils.Logger
	defaults DomainBudget

	mu        sync.Mutex
	overrides map[string]DomainBudget
	domains   map[string]*domainState
}

type domainState struct {
	slots chan struct{}

	mu           sync.Mutex
	lastDispatch time.Time
	widen        float64
}

// NewLimiter builds a Limiter with the given default budget.
func NewLimiter(log *utils.Logger, defaults DomainBudget) *Limiter {
	if defaults.MaxConcurrent <= 0 {
		defaults.MaxConcurrent = 2
	}
	if defaults.MaxDelay < defaults.MinDelay {
		defaults.MaxDelay = defaults.MinDelay
	}
	return &Limiter{
		log:       log,
		defaults:  defaults,
		overrides: make(map[string]DomainBudget),
		domains:   make(map[string]*domainState),
	}
}

// SetBudget overrides the budget for one domain. Different vendors
// tolerate different load. Must be called before work is dispatched to
// the domain: the concurrency slots are sized when the domain first
// appears and are not resized afterwards, so a later override changes
// only the delay range.
func (l *Limiter) SetBudget(domain string, b DomainBudget) {
	if b.MaxConcurrent <= 0 {
		b.MaxConcurrent = l.defaults.MaxConcurrent
	}
	if b.MaxDelay < b.MinDelay {
		b.MaxDelay = b.MinDelay
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[domain] = b
}

// Do runs fn under the domain's budget, blocking until a concurrency slot
// is free and the randomized inter-dispatch delay has elapsed. The error
// from fn is passed through; it also feeds the delay-widening policy.
func (l *Limiter) Do(ctx context.Context, domain string, fn func() error) error {
	st, budget := l.state(domain)

	select {
	case st.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-st.slots }()

	if err := l.pace(ctx, st, budget); err != nil {
		return err
	}

	err := fn()
	st.mu.Lock()
	if err != nil {
		st.widen *= widenFactor
		if st.widen > maxWiden {
			st.widen = maxWiden
		}
	} else if st.widen > 1 {
		st.widen /= widenFactor
		if st.widen < 1 {
			st.widen = 1
		}
	}
	st.mu.Unlock()
	return err
}

// pace sleeps out the randomized spacing since the domain's last dispatch.
func (l *Limiter) pace(ctx context.Context, st *domainState, budget DomainBudget) error {
	st.mu.Lock()
	min := time.Duration(float64(budget.MinDelay) * st.widen)
	max := time.Duration(float64(budget.MaxDelay) * st.widen)
	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max - min)))
	}
	wait := time.Until(st.lastDispatch.Add(delay))
	// Claim the dispatch slot now so concurrent waiters stack their
	// delays instead of firing together.
	if wait > 0 {
		st.lastDispatch = st.lastDispatch.Add(delay)
	} else {
		st.lastDispatch = time.Now()
	}
	st.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) state(domain string) (*domainState, DomainBudget) {
	l.mu.Lock()
	defer l.mu.Unlock()

	budget, ok := l.overrides[domain]
	if !ok {
		budget = l.defaults
	}

	st, ok := l.domains[domain]
	if !ok {
		st = &domainState{
			slots: make(chan struct{}, budget.MaxConcurrent),
			widen: 1,
		}
		l.domains[domain] = st
	}
	return st, budget
}
