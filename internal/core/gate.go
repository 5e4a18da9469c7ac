package core

// gate.go serializes imports per collection.
//
// Two imports of the same kind would each see a snapshot without the other's
// rows, so both could insert the same natural key and one batch would fail.
// The gate holds one slot per kind; a second request waits up to maxWait for
// the first to finish and is then turned away with ErrImportBusy. Imports of
// different kinds run in parallel.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/catalogimport/internal/store"
)

// ErrImportBusy is returned when an import of the same kind is still running
// after the wait expires.
var ErrImportBusy = errors.New("import already running for this kind, please try again later")

// DefaultGateWait is how long Acquire waits when no wait is configured.
const DefaultGateWait = 5 * time.Second

// ImportGate allows one running import per collection.
type ImportGate struct {
	maxWait time.Duration

	mu    sync.Mutex
	slots map[store.Collection]chan struct{}
}

// NewImportGate returns a gate whose Acquire waits at most maxWait.
func NewImportGate(maxWait time.Duration) *ImportGate {
	if maxWait <= 0 {
		maxWait = DefaultGateWait
	}
	return &ImportGate{
		maxWait: maxWait,
		slots:   make(map[store.Collection]chan struct{}),
	}
}

func (g *ImportGate) slot(kind store.Collection) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[kind]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[kind] = s
	}
	return s
}

// Acquire takes the slot for kind. The returned release func must be called
// exactly once when the import finishes.
func (g *ImportGate) Acquire(ctx context.Context, kind store.Collection) (release func(), err error) {
	s := g.slot(kind)

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case s <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s }) }, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrImportBusy
	}
}

// Busy reports whether an import of kind is running.
func (g *ImportGate) Busy(kind store.Collection) bool {
	return len(g.slot(kind)) > 0
}

// Active returns the number of imports currently running.
func (g *ImportGate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, s := range g.slots {
		n += len(s)
	}
	return n
}

// WaitForDrain blocks until no import is running or ctx is done. The server
// calls it during shutdown.
func (g *ImportGate) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if g.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
