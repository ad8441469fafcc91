package probe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of probe workers admitted at once.
const DefaultConcurrency = 4

// Task is the body of an admitted worker. Calling release gives the permit
// back early; the gatekeeper releases it on return otherwise. release is
// safe to call more than once.
type Task func(ctx context.Context, release func())

// GateObserver receives admission activity. The metrics package implements it.
type GateObserver interface {
	ProbeActive(n int)
}

// Gatekeeper bounds the number of concurrently admitted tasks.
type Gatekeeper struct {
	sem      *semaphore.Weighted
	limit    int
	active   atomic.Int64
	wg       sync.WaitGroup
	observer GateObserver
}

// NewGatekeeper admits up to limit tasks at once. A limit below 1 uses
// DefaultConcurrency.
func NewGatekeeper(limit int, observer GateObserver) *Gatekeeper {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &Gatekeeper{
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    limit,
		observer: observer,
	}
}

// Limit returns the permit count.
func (g *Gatekeeper) Limit() int { return g.limit }

// Active returns how many tasks currently hold a permit.
func (g *Gatekeeper) Active() int { return int(g.active.Load()) }

// Submit starts an admission goroutine that waits for a permit and then
// runs task. It returns immediately. If ctx is cancelled before a permit is
// available the task never runs.
func (g *Gatekeeper) Submit(ctx context.Context, task Task) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.sem.Acquire(ctx, 1); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Gatekeeper.Submit",
				"error":    err.Error(),
			}).Debug("Probe admission abandoned")
			return
		}
		g.report(g.active.Add(1))

		release := sync.OnceFunc(func() {
			g.report(g.active.Add(-1))
			g.sem.Release(1)
		})
		defer release()

		task(ctx, release)
	}()
}

// Wait blocks until every submitted task has returned.
func (g *Gatekeeper) Wait() {
	g.wg.Wait()
}

func (g *Gatekeeper) report(n int64) {
	if g.observer != nil {
		g.observer.ProbeActive(int(n))
	}
}
