package pubsub

import (
	"time"

	"github.com/maypok86/otter"
	"github.com/robfig/cron/v3"
)

// GraceEvictor destroys nodes a configured grace period after their last
// subscriber leaves, provided no new subscriber rejoins in the meantime
// (spec §3: "Node... destroyed when no subscribers remain AND no pending
// update has been observed within an implementation-defined grace").
//
// Grounded on Resin's internal/node/latency.go (otter.MustBuilder /
// otter.Cache usage pattern) for the TTL-bearing cache, and
// internal/state/flush.go's stopCh/WaitGroup shutdown idiom via cron's own
// Start/Stop — except scheduling itself uses github.com/robfig/cron/v3,
// Resin's own dependency for its GeoIP database refresh schedule, reused
// here to express "sweep every N seconds" as a cron spec instead of a
// hand-rolled ticker.
type GraceEvictor struct {
	root  *Root
	grace otter.Cache[string, struct{}]
	cron  *cron.Cron
}

// NewGraceEvictor builds a GraceEvictor for root. gracePeriod bounds how
// long an emptied node survives before eviction; sweepSpec is a standard
// cron expression for how often the sweep runs (e.g. "@every 30s").
// capacityHint bounds the grace cache's size (a node awaiting eviction
// occupies one entry; it is not the same bound as the live node count).
func NewGraceEvictor(root *Root, gracePeriod time.Duration, sweepSpec string, capacityHint int) (*GraceEvictor, error) {
	cache, err := otter.MustBuilder[string, struct{}](capacityHint).
		WithTTL(gracePeriod).
		Build()
	if err != nil {
		return nil, err
	}

	e := &GraceEvictor{root: root, grace: cache, cron: cron.New()}
	root.SetEmptiedHook(e.markEmptied)
	root.SetResubscribedHook(e.cancelPending)

	if _, err := e.cron.AddFunc(sweepSpec, e.sweep); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *GraceEvictor) markEmptied(key string) {
	e.grace.Set(key, struct{}{})
}

func (e *GraceEvictor) cancelPending(key string) {
	e.grace.Delete(key)
}

// sweep evicts every node that both has no subscribers right now and whose
// grace-period entry has expired (or was never armed, e.g. a node created
// and immediately abandoned between sweeps).
func (e *GraceEvictor) sweep() {
	e.root.RangeUnsubscribedNodes(func(key string) {
		if _, found := e.grace.Get(key); found {
			return
		}
		e.root.EvictIfUnsubscribedByKey(key)
	})
}

// Start begins the periodic sweep.
func (e *GraceEvictor) Start() { e.cron.Start() }

// Stop halts the periodic sweep and releases the grace cache. Safe to call
// once after Start.
func (e *GraceEvictor) Stop() {
	ctx := e.cron.Stop()
	<-ctx.Done()
	e.grace.Close()
}
