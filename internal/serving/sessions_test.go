package serving

import (
	"context"
	"testing"
	"time"
)

func newTestPool(t *testing.T, modelID string, size int) (*SessionPool, Backend) {
	t.Helper()
	backend := newSimBackend(simModel(modelID))
	sessions := make([]Session, size)
	for i := range sessions {
		s, err := backend.NewSession()
		if err != nil {
			t.Fatalf("new session: %v", err)
		}
		sessions[i] = s
	}
	p := NewSessionPool()
	p.add(modelID, sessions)
	return p, backend
}

func TestPoolAcquireRelease(t *testing.T) {
	p, _ := newTestPool(t, "m", 1)
	lease, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if p.Active("m") != 1 {
		t.Fatalf("expected 1 active, got %d", p.Active("m"))
	}
	lease.Release()
	if p.Active("m") != 0 {
		t.Fatalf("expected 0 active after release, got %d", p.Active("m"))
	}
	// Release is idempotent.
	lease.Release()
	if p.Active("m") != 0 {
		t.Fatalf("double release changed accounting: %d", p.Active("m"))
	}
}

func TestPoolAcquireTimeoutIsOverloaded(t *testing.T) {
	p, _ := newTestPool(t, "m", 1)
	lease, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release()

	if _, err := p.Acquire(context.Background(), "m", 20*time.Millisecond); !IsOverloaded(err) {
		t.Fatalf("expected overloaded on exhausted pool, got %v", err)
	}
}

func TestPoolAcquireUnknownModel(t *testing.T) {
	p := NewSessionPool()
	if _, err := p.Acquire(context.Background(), "ghost", time.Millisecond); !IsUnknownModel(err) {
		t.Fatalf("expected unknown model, got %v", err)
	}
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	p, _ := newTestPool(t, "m", 1)
	lease, err := p.Acquire(context.Background(), "m", time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Acquire(ctx, "m", time.Second); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPoolRetireBusy(t *testing.T) {
	p, _ := newTestPool(t, "m", 2)
	lease, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := p.Retire("m"); !IsBusy(err) {
		t.Fatalf("expected busy with leased session, got %v", err)
	}
	lease.Release()
	if err := p.Retire("m"); err != nil {
		t.Fatalf("retire after release: %v", err)
	}
	if _, err := p.Acquire(context.Background(), "m", time.Millisecond); !IsUnknownModel(err) {
		t.Fatalf("expected unknown model after retire, got %v", err)
	}
}

func TestPoolConcurrencyBoundedBySize(t *testing.T) {
	p, _ := newTestPool(t, "m", 2)
	a, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	b, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	if _, err := p.Acquire(context.Background(), "m", 10*time.Millisecond); !IsOverloaded(err) {
		t.Fatalf("third acquire should time out, got %v", err)
	}
	a.Release()
	c, err := p.Acquire(context.Background(), "m", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire c after release: %v", err)
	}
	c.Release()
	b.Release()
}
