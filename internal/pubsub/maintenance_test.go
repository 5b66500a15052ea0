package pubsub

import (
	"testing"
	"time"
)

func TestGraceEvictorEvictsAfterGraceWithNoResubscribe(t *testing.T) {
	root, q := newTestRoot(&testAdapter{})
	defer q.Stop()

	evictor, err := NewGraceEvictor(root, 30*time.Millisecond, "@every 10ms", 16)
	if err != nil {
		t.Fatalf("NewGraceEvictor: %v", err)
	}
	evictor.Start()
	defer evictor.Stop()

	name := NewName([2]string{"host", "a"})
	sub := newTestSubscriber()
	root.Subscribe(sub, name)
	<-sub.updateRecvd

	root.Unsubscribe(sub, name)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := root.nodes.Load(name.String()); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected node to be evicted after the grace period elapsed")
}

func TestGraceEvictorCancelledByResubscribe(t *testing.T) {
	root, q := newTestRoot(&testAdapter{})
	defer q.Stop()

	evictor, err := NewGraceEvictor(root, 50*time.Millisecond, "@every 10ms", 16)
	if err != nil {
		t.Fatalf("NewGraceEvictor: %v", err)
	}
	evictor.Start()
	defer evictor.Stop()

	name := NewName([2]string{"host", "a"})
	first := newTestSubscriber()
	root.Subscribe(first, name)
	<-first.updateRecvd

	root.Unsubscribe(first, name)

	second := newTestSubscriber()
	root.Subscribe(second, name)
	<-second.updateRecvd

	time.Sleep(150 * time.Millisecond)

	if _, ok := root.nodes.Load(name.String()); !ok {
		t.Fatalf("expected the node to survive: a new subscriber joined before the grace period elapsed")
	}
}

func TestGraceEvictorLeavesActiveNodesAlone(t *testing.T) {
	root, q := newTestRoot(&testAdapter{})
	defer q.Stop()

	evictor, err := NewGraceEvictor(root, 20*time.Millisecond, "@every 10ms", 16)
	if err != nil {
		t.Fatalf("NewGraceEvictor: %v", err)
	}
	evictor.Start()
	defer evictor.Stop()

	name := NewName([2]string{"host", "a"})
	sub := newTestSubscriber()
	root.Subscribe(sub, name)
	<-sub.updateRecvd

	time.Sleep(100 * time.Millisecond)

	if _, ok := root.nodes.Load(name.String()); !ok {
		t.Fatalf("a node with an active subscriber must never be evicted")
	}
}
