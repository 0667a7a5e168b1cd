package serving

import (
	"context"
	"sync"
	"time"
)

// SessionPool holds a fixed-size set of execution sessions per model. Sessions
// are created once at register time and checked out exclusively: a leased
// session is never visible to any other batch until Release returns it.
type SessionPool struct {
	mu   sync.Mutex
	sets map[string]*sessionSet
}

type sessionSet struct {
	free    chan Session
	size    int
	active  int
	retired bool
}

func NewSessionPool() *SessionPool {
	return &SessionPool{sets: make(map[string]*sessionSet)}
}

// add installs a freshly created session set for a model.
func (p *SessionPool) add(modelID string, sessions []Session) {
	set := &sessionSet{free: make(chan Session, len(sessions)), size: len(sessions)}
	for _, s := range sessions {
		set.free <- s
	}
	p.mu.Lock()
	p.sets[modelID] = set
	p.mu.Unlock()
}

// SessionLease is an exclusive checkout of one session. Release is idempotent
// and must be called on every exit path; the scheduler defers it immediately
// after a successful Acquire so execution failures cannot starve the pool.
type SessionLease struct {
	Session Session
	pool    *SessionPool
	modelID string
	once    sync.Once
}

// Release returns the session to its pool. If the model was retired while the
// lease was out, the session is closed instead.
func (l *SessionLease) Release() {
	l.once.Do(func() {
		l.pool.release(l.modelID, l.Session)
	})
}

// Acquire blocks until a session for modelID is free, the timeout elapses, or
// ctx is done. Timeout maps to the overloaded error; the caller discards the
// batch rather than retrying.
func (p *SessionPool) Acquire(ctx context.Context, modelID string, timeout time.Duration) (*SessionLease, error) {
	p.mu.Lock()
	set, ok := p.sets[modelID]
	if !ok || set.retired {
		p.mu.Unlock()
		return nil, unknownModelError{id: modelID}
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case s := <-set.free:
		p.mu.Lock()
		if set.retired {
			// Retire won the race; do not hand out a session being torn down.
			p.mu.Unlock()
			_ = s.Close()
			return nil, unknownModelError{id: modelID}
		}
		set.active++
		p.mu.Unlock()
		return &SessionLease{Session: s, pool: p, modelID: modelID}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, overloadedError{id: modelID}
	}
}

func (p *SessionPool) release(modelID string, s Session) {
	p.mu.Lock()
	set, ok := p.sets[modelID]
	if !ok {
		p.mu.Unlock()
		_ = s.Close()
		return
	}
	set.active--
	if set.retired {
		p.mu.Unlock()
		_ = s.Close()
		return
	}
	p.mu.Unlock()
	set.free <- s
}

// Active reports how many sessions for modelID are currently leased.
func (p *SessionPool) Active(modelID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.sets[modelID]; ok {
		return set.active
	}
	return 0
}

// Retire removes the model's session set, closing all idle sessions. It fails
// with a busy error while any lease is outstanding, which is what makes the
// drain-before-unload ordering hold: native resources are only torn down once
// the pool has confirmed zero active sessions.
func (p *SessionPool) Retire(modelID string) error {
	p.mu.Lock()
	set, ok := p.sets[modelID]
	if !ok {
		p.mu.Unlock()
		return unknownModelError{id: modelID}
	}
	if set.active > 0 {
		p.mu.Unlock()
		return busyError{id: modelID, active: set.active}
	}
	set.retired = true
	delete(p.sets, modelID)
	p.mu.Unlock()

	for {
		select {
		case s := <-set.free:
			_ = s.Close()
		default:
			return nil
		}
	}
}

// snapshot returns (leased, size) for status reporting.
func (p *SessionPool) snapshot(modelID string) (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.sets[modelID]; ok {
		return set.active, set.size
	}
	return 0, 0
}
