package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kset/verifikator/internal/domain"
)

// entry pairs a stored attempt with its own lock, so transitions on
// unrelated identifiers never block each other. The entry lock is the
// "select for update" of the memory backend: a transition holds it for the
// whole check-and-set, which makes pending→terminal exactly-once.
type entry struct {
	mu sync.Mutex
	a  domain.VerificationAttempt
}

// AttemptRepo is the default, in-memory verification store.
type AttemptRepo struct {
	mu      sync.RWMutex // guards the map itself, not entry contents
	entries map[string]*entry
}

func NewAttemptRepo() *AttemptRepo {
	return &AttemptRepo{entries: make(map[string]*entry)}
}

// Upsert inserts a fresh record for the attempt's state, replacing any prior
// one. Terminal records past their TTL are purged opportunistically on the
// same pass, which keeps the map from accumulating dead attempts.
func (r *AttemptRepo) Upsert(ctx context.Context, a *domain.VerificationAttempt) error {
	now := time.Now().Unix()
	r.mu.Lock()
	defer r.mu.Unlock()
	for state, e := range r.entries {
		if e.a.Status.Terminal() && e.a.ExpiresAt < now {
			delete(r.entries, state)
		}
	}
	r.entries[a.State] = &entry{a: *a}
	return nil
}

func (r *AttemptRepo) Get(ctx context.Context, state string) (*domain.VerificationAttempt, error) {
	e := r.entry(state)
	if e == nil {
		return nil, fmt.Errorf("attempt %q: %w", state, domain.ErrNotFound)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.a
	return &out, nil
}

// Transition moves a pending attempt to a terminal status. Exactly one of
// any number of concurrent callers wins; the rest observe
// domain.ErrAlreadyResolved.
func (r *AttemptRepo) Transition(ctx context.Context, state string, to domain.AttemptStatus, resolvedEmail string) (*domain.VerificationAttempt, error) {
	if !to.Terminal() {
		return nil, fmt.Errorf("cannot transition to %q: %w", to, domain.ErrBadRequest)
	}
	e := r.entry(state)
	if e == nil {
		return nil, fmt.Errorf("attempt %q: %w", state, domain.ErrNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.a.Status.Terminal() {
		return nil, fmt.Errorf("attempt is %s: %w", e.a.Status, domain.ErrAlreadyResolved)
	}
	now := time.Now().UTC()
	e.a.Status = to
	e.a.ResolvedEmail = resolvedEmail
	e.a.ResolvedAt = &now
	out := e.a
	return &out, nil
}

func (r *AttemptRepo) entry(state string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[state]
}
